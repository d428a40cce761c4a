package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns, as an int, a pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Keys returns n distinct keys "<prefix>-%08d". They sort in generation order.
func Keys(prefix string, n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = fmt.Appendf(nil, "%s-%08d", prefix, i)
	}
	return keys
}

// Key returns a random printable key of length n.
func (r *RNG) Key(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.printableLocked(n)
}

func (r *RNG) printableLocked(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return b
}

// Value returns between 0 and maxParts buffers, each of up to maxLen random
// bytes. Empty buffers and empty values are both produced.
func (r *RNG) Value(maxParts, maxLen int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valueLocked(maxParts, maxLen)
}

func (r *RNG) valueLocked(maxParts, maxLen int) [][]byte {
	value := make([][]byte, r.rand.Intn(maxParts+1))
	for i := range value {
		value[i] = make([]byte, r.rand.Intn(maxLen+1))
		r.rand.Read(value[i])
	}
	return value
}

// OpKind is the type of a workload operation.
type OpKind uint8

const (
	OpGet OpKind = iota
	OpPut
	OpDel
)

func (k OpKind) String() string {
	switch k {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	default:
		return "del"
	}
}

// Op is one workload step. Value is set for puts only.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value [][]byte
}

// Mix weights the operation kinds of a workload. Weights need not sum to 1.
type Mix struct {
	Get float64 `yaml:"get" validate:"gte=0"`
	Put float64 `yaml:"put" validate:"gte=0"`
	Del float64 `yaml:"del" validate:"gte=0"`
}

// Workload generates n operations over keys. With skew > 1 keys are chosen
// from a Zipf distribution (key 0 hottest); otherwise uniformly.
func (r *RNG) Workload(n int, keys [][]byte, mix Mix, skew float64) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := mix.Get + mix.Put + mix.Del
	if total <= 0 || len(keys) == 0 {
		return nil
	}

	var zipf *rand.Zipf
	if skew > 1 && len(keys) > 1 {
		zipf = rand.NewZipf(r.rand, skew, 1, uint64(len(keys)-1))
	}

	ops := make([]Op, n)
	for i := range ops {
		var k int
		if zipf != nil {
			k = int(zipf.Uint64())
		} else {
			k = r.rand.Intn(len(keys))
		}
		ops[i].Key = keys[k]

		switch x := r.rand.Float64() * total; {
		case x < mix.Get:
			ops[i].Kind = OpGet
		case x < mix.Get+mix.Put:
			ops[i].Kind = OpPut
			ops[i].Value = r.valueLocked(2, 32)
		default:
			ops[i].Kind = OpDel
		}
	}
	return ops
}

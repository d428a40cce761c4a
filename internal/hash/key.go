package hash

import "github.com/spaolacci/murmur3"

const (
	primarySeed   = 0
	secondarySeed = 0x9747b28c
)

// Key returns the primary and secondary hash of key.
func Key(key []byte) (primary, secondary uint32) {
	return murmur3.Sum32WithSeed(key, primarySeed), murmur3.Sum32WithSeed(key, secondarySeed)
}

// Primary returns only the primary hash of key.
func Primary(key []byte) uint32 {
	return murmur3.Sum32WithSeed(key, primarySeed)
}

package codec

import "github.com/agiz/HyperDex/shard"

// Record is the text form of a stored record, one per line in JSON dumps.
// Buffers are kept as strings so dumps stay readable.
type Record struct {
	Key     string   `json:"key"`
	Version uint64   `json:"version,omitempty"`
	Value   []string `json:"value"`
}

// FromShard converts a shard record.
func FromShard(rec shard.Record) Record {
	values := make([]string, len(rec.Value))
	for i, v := range rec.Value {
		values[i] = string(v)
	}
	return Record{Key: string(rec.Key), Version: rec.Version, Value: values}
}

// Buffers returns the value as byte buffers.
func (r Record) Buffers() [][]byte {
	out := make([][]byte, len(r.Value))
	for i, v := range r.Value {
		out[i] = []byte(v)
	}
	return out
}

// AppendLine encodes r with c and appends it and a newline to dst.
func AppendLine(dst []byte, c Codec, r Record) ([]byte, error) {
	b, err := c.Marshal(r)
	if err != nil {
		return dst, err
	}
	dst = append(dst, b...)
	return append(dst, '\n'), nil
}

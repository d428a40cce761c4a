// Package hash provides the hashing used around shards.
//
// # Key hashes
//
// Shards never hash keys themselves; callers pass a primary and a
// secondary 32-bit hash. Key derives both from a key with MurmurHash3 using
// two seeds, so the primary hash (which picks the hash table slot and the
// shard) and the secondary hash (which a HashCoordinate may also split on)
// are independent.
//
//	primary, secondary := hash.Key([]byte("user:42"))
//
// # CRC32-Castagnoli (CRC32C)
//
// Archive frames and S3 uploads are checksummed with CRC32C, which is
// hardware accelerated on x86 (SSE4.2) and ARM (CRC extension).
//
//	checksum := hash.CRC32C(data)
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash

// Package archive streams the records of a shard snapshot into a portable,
// compressed file and replays such files into shards.
//
// # Format
//
//	header : "HDXA" | version u8 | codec u8 | reserved u16 | id [16]byte
//	         | hash table entries u32 | search index entries u32 | data size u32
//	frames : flags u8 | raw length u32 | stored length u32 | crc32c(raw) u32 | payload
//	trailer: end frame (flags = end, lengths 0) | record count u64
//
// Integers are little-endian. A frame payload is a batch of records, each
//
//	primary u32 | secondary u32 | version u64 | key length u32 | key
//	| value count u32 | count x (length u32 | bytes)
//
// compressed with the archive's codec unless compression did not pay off,
// in which case the frame is stored raw. Every frame is verified against
// its CRC32C on read.
//
// # Usage
//
//	snap, _ := s.Snapshot()
//	defer snap.Close()
//	stats, err := archive.Export(ctx, snap, w, archive.WithCodec(archive.CodecZstd))
//
//	restored, err := archive.Restore(ctx, r, dir, "0001.shard")
package archive

// Package shard implements a HyperDex disk shard: a fixed-capacity,
// memory-mapped key-value log.
//
// A shard file holds three regions. The data log stores versioned records
// back to back and is never rewritten. The search index records, for every
// put, the hashes of the key, the record's offset, and once the key is
// overwritten or deleted, the offset of the record that superseded it. The
// hash table maps a key's primary hash to its newest search index entry
// using linear probing.
//
// Because both append regions only grow, a shard fills up even under a
// steady working set. UsedSpace and StaleSpace tell the owner when to
// rewrite it with CopyTo, either into one fresh shard (cleaning) or into
// several shards selected by a Coordinate (splitting).
//
// Quick start:
//
//	s, err := shard.Create(dir, "0001.shard",
//		shard.WithGeometry(shard.Geometry{
//			HashTableEntries:   1 << 16,
//			SearchIndexEntries: 1 << 18,
//			DataSize:           64 << 20,
//		}),
//	)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	g := shard.NewGuarded(s)
//	err = g.Put(hash, 0, []byte("key"), [][]byte{[]byte("value")}, 1)
package shard

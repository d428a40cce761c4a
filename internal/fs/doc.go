// Package fs abstracts the filesystem calls shards and local blob stores
// make, so tests can inject failures.
//
//   - [LocalFS] forwards to the os package and is what [Default] holds.
//   - [FaultyFS] wraps another FileSystem and fails opens, writes, syncs,
//     truncates or closes of files whose path matches a rule.
//
// A shard created through a FaultyFS with a sync rule returns a SyncError
// from Sync without the test needing a broken disk:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".shard", fs.Fault{FailOnSync: true, FailAfterBytes: -1})
//	s, _ := shard.Create(dir, "0001.shard", shard.WithFileSystem(ffs))
//
// Calls take no context. They are local syscalls; remote IO goes through
// the blobstore package, which does.
package fs

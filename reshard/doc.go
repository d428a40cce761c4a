// Package reshard rebuilds shards that are running out of room.
//
// A shard never grows and never reclaims space in place. Once it fills up
// its live records are copied into new shard files: one file with the same
// geometry when most of the space is stale (a clean), or several files each
// taking a disjoint part of the hash space when the data itself outgrew the
// shard (a split).
//
//	c := reshard.NewCompactor(dir, reshard.WithController(rc))
//	switch reshard.DefaultPolicy().Decide(src.UsedSpace(), src.StaleSpace()) {
//	case reshard.ActionClean:
//		fresh, err := c.Clean(ctx, src, "0001.shard")
//	case reshard.ActionSplit:
//		parts, err := c.SplitHash(ctx, src, shard.HashCoordinate{}, "0001a.shard", "0001b.shard")
//	}
//
// New files are built under unique temporary names and renamed into place
// only after every copy succeeded, so a source can be replaced by a shard of
// the same name.
package reshard

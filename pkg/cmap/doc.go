// Package cmap provides a sharded map safe for concurrent use.
//
// Keys are spread over a fixed number of shards, each guarded by its own
// RWMutex, so lookups for unrelated keys do not contend.
//
//	m := cmap.New[string, *rate.Limiter]()
//	lim, _ := m.GetOrSet("alice", rate.NewLimiter(1, 3))
package cmap

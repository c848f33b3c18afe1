package wanagent

import "sync/atomic"

// ackCounters owns one atomic next-expected-ack counter per peer site,
// mutated only by the ack-receive loop and readable by anyone via Snapshot.
// Grounded on spec.md §9's redesign note (replace the shared mutable map
// passed by reference between the ack loop and the predicate owner with a
// dedicated object), and on 1ureka-roj1/internal/util/stats.go's
// atomic-counter-singleton pattern.
type ackCounters struct {
	counters map[SiteID]*atomic.Uint64
}

func newAckCounters(peers []SiteID) *ackCounters {
	c := &ackCounters{counters: make(map[SiteID]*atomic.Uint64, len(peers))}
	for _, id := range peers {
		c.counters[id] = new(atomic.Uint64)
	}
	return c
}

// Load returns the current next-expected-ack value for a peer.
func (c *ackCounters) Load(site SiteID) uint64 {
	ctr, ok := c.counters[site]
	if !ok {
		return 0
	}
	return ctr.Load()
}

// CompareAndAdvance atomically checks that the counter for site equals want
// and, if so, increments it by one. Returns false (without mutating) if the
// counter does not match want.
func (c *ackCounters) CompareAndAdvance(site SiteID, want uint64) bool {
	ctr, ok := c.counters[site]
	if !ok {
		return false
	}
	return ctr.CompareAndSwap(want, want+1)
}

// Snapshot returns a point-in-time copy of every peer's counter.
func (c *ackCounters) Snapshot() map[SiteID]uint64 {
	out := make(map[SiteID]uint64, len(c.counters))
	for id, ctr := range c.counters {
		out[id] = ctr.Load()
	}
	return out
}

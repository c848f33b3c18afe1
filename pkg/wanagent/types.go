// Package wanagent implements the WAN relay core: a sender engine that
// fans an ordered stream of payloads out to a fixed set of server sites
// over persistent TCP connections, and a server engine that accepts those
// connections, hands payloads to a user callback, and acknowledges them.
package wanagent

import "math"

// SiteID identifies a site within a deployment. Zero is a valid site id.
type SiteID uint32

// SeqNo is a per-peer sequence number. NoSeq is the sentinel meaning
// "nothing sent/acked yet" and compares as smaller than every real sequence
// number, matching the C++ original's use of the all-ones uint64 together
// with wrap-to-zero arithmetic on the first successful send.
type SeqNo uint64

// NoSeq is the "never sent" sentinel. Kept as a single documented constant
// rather than an Option/variant type so the send and ack loops — the hot
// path — stay allocation-free; see DESIGN.md's Open Question decision #1.
const NoSeq SeqNo = math.MaxUint64

// Next returns the sequence number that follows s, wrapping NoSeq to 0.
func (s SeqNo) Next() SeqNo {
	if s == NoSeq {
		return 0
	}
	return s + 1
}

// Less reports whether s sorts before o, treating NoSeq as smaller than any
// real sequence number.
func (s SeqNo) Less(o SeqNo) bool {
	if s == o {
		return false
	}
	if s == NoSeq {
		return true
	}
	if o == NoSeq {
		return false
	}
	return s < o
}

// minSeqNo returns the smallest of a and b under NoSeq-aware ordering.
func minSeqNo(a, b SeqNo) SeqNo {
	if a.Less(b) {
		return a
	}
	return b
}

// SiteAddr is a (host, port) pair as it appears in configuration.
type SiteAddr struct {
	ID   SiteID
	IP   string
	Port uint16
}

// RemoteMessageCallback is invoked by a server worker for every fully
// received payload, before the acknowledgement is written back. It runs
// synchronously on the worker goroutine handling that peer's connection.
type RemoteMessageCallback func(siteID SiteID, payload []byte)

// PredicateLambda is invoked by the predicate loop with a snapshot of the
// per-site ack counters whenever the ack vector advances.
type PredicateLambda func(snapshot map[SiteID]uint64)

// ReadyNotifier is invoked once a core has finished its construction-time
// setup (all outbound connections dialed, or all inbound connections
// accepted).
type ReadyNotifier func()

// CounterHook is an optional observability callback fired synchronously on
// a specific, successful protocol event (a request actually written, a
// non-violating ack processed). Never fired for a shutdown-induced error.
type CounterHook func()

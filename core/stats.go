package core

import (
	"sync"

	"github.com/signalsfoundry/stokesmap/model"
)

// RunStats tracks per-pass sample accounting. All counters are
// concurrency-safe so parallel workers can share one instance, or keep
// private ones and combine snapshots.
type RunStats struct {
	mu       sync.Mutex
	accepted uint64
	rejected map[model.RejectReason]uint64
}

// NewRunStats creates zeroed statistics.
func NewRunStats() *RunStats {
	return &RunStats{rejected: make(map[model.RejectReason]uint64)}
}

// Accept counts a sample that contributed to the map.
func (r *RunStats) Accept() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted++
}

// Reject counts an excluded sample under its reason.
func (r *RunStats) Reject(reason model.RejectReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

// AddSnapshot folds a snapshot's counts in, for merging per-worker
// statistics into the pass totals.
func (r *RunStats) AddSnapshot(snap StatsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted += snap.Accepted
	for reason, c := range snap.Rejected {
		r.rejected[reason] += c
	}
}

// StatsSnapshot is a point-in-time copy of the counters, safe to read
// and serialize without locking.
type StatsSnapshot struct {
	Accepted uint64                        `json:"accepted"`
	Rejected map[model.RejectReason]uint64 `json:"rejected"`
}

// Total returns the number of samples seen, accepted or not.
func (s StatsSnapshot) Total() uint64 {
	n := s.Accepted
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

// Snapshot returns a copy of the current counters. Reasons with zero
// counts are present so reports always list the full taxonomy.
func (r *RunStats) Snapshot() StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := StatsSnapshot{
		Accepted: r.accepted,
		Rejected: make(map[model.RejectReason]uint64, len(model.Reasons())),
	}
	for _, reason := range model.Reasons() {
		out.Rejected[reason] = r.rejected[reason]
	}
	return out
}

// Combine folds another snapshot's counts into this one and returns
// the result, for merging per-worker statistics.
func (s StatsSnapshot) Combine(other StatsSnapshot) StatsSnapshot {
	out := StatsSnapshot{
		Accepted: s.Accepted + other.Accepted,
		Rejected: make(map[model.RejectReason]uint64, len(s.Rejected)),
	}
	for reason, c := range s.Rejected {
		out.Rejected[reason] = c
	}
	for reason, c := range other.Rejected {
		out.Rejected[reason] += c
	}
	return out
}

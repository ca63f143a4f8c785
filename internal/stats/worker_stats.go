// Package stats provides per-worker and aggregated statistics for a
// training process group: lifecycle counts, uptimes, barrier wait
// durations, and the exit summary shown when a run ends.
package stats

import (
	"sync/atomic"
	"time"
)

// WorkerStats holds statistics for a single worker process.
//
// Thread-safe: mutable fields use atomics, the rest are set once at
// creation or exit.
type WorkerStats struct {
	WorkerIndex int
	StartTime   time.Time

	// Output forwarded from the worker's stdio (atomic, lock-free)
	OutputLines     atomic.Int64
	OutputWarnings  atomic.Int64
	OutputTruncated atomic.Int64

	// Barrier synchronization
	BarrierWaits atomic.Int64

	// Exit state, written once by RecordExit
	exited   atomic.Bool
	exitCode atomic.Int64
	endNanos atomic.Int64
}

// NewWorkerStats creates stats for one worker.
func NewWorkerStats(workerIndex int) *WorkerStats {
	return &WorkerStats{
		WorkerIndex: workerIndex,
		StartTime:   time.Now(),
	}
}

// RecordExit marks the worker as exited with the given code.
func (s *WorkerStats) RecordExit(exitCode int) {
	if s.exited.CompareAndSwap(false, true) {
		s.exitCode.Store(int64(exitCode))
		s.endNanos.Store(time.Now().UnixNano())
	}
}

// Exited reports whether the worker has exited.
func (s *WorkerStats) Exited() bool {
	return s.exited.Load()
}

// ExitCode returns the recorded exit code, valid only after Exited.
func (s *WorkerStats) ExitCode() int {
	return int(s.exitCode.Load())
}

// Uptime returns the worker's lifetime so far, or its final lifetime
// once exited.
func (s *WorkerStats) Uptime() time.Duration {
	if s.exited.Load() {
		return time.Unix(0, s.endNanos.Load()).Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// AggregatedStats is a point-in-time snapshot across all workers of a run.
type AggregatedStats struct {
	TotalWorkers  int
	ActiveWorkers int
	TotalExits    int
	FailedExits   int
	ExitCodes     map[int]int

	// Output pipeline health
	TotalOutputLines     int64
	TotalOutputWarnings  int64
	TotalOutputTruncated int64

	// Uptime percentiles across exited workers
	UptimeP50 time.Duration
	UptimeP95 time.Duration
	UptimeP99 time.Duration

	// Barrier wait distribution
	BarrierWaitCount int64
	BarrierWaitP50   time.Duration
	BarrierWaitP95   time.Duration
	BarrierWaitMax   time.Duration
}

// Aggregator combines per-worker stats into run-level aggregates. Wire its
// record methods into the runtime's worker callbacks.
type Aggregator struct {
	mu      sync.Mutex
	workers map[int]*WorkerStats

	exitCodes map[int]int

	// TDigest is not thread-safe; guarded by mu.
	uptimeDigest  *tdigest.TDigest
	barrierDigest *tdigest.TDigest

	barrierWaits   int64
	barrierWaitMax time.Duration
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		workers:       make(map[int]*WorkerStats),
		exitCodes:     make(map[int]int),
		uptimeDigest:  tdigest.NewWithCompression(100),
		barrierDigest: tdigest.NewWithCompression(100),
	}
}

// WorkerStarted registers a worker and returns its stats record. Calling
// it again for the same index starts a fresh record.
func (a *Aggregator) WorkerStarted(workerIndex int) *WorkerStats {
	ws := NewWorkerStats(workerIndex)

	a.mu.Lock()
	a.workers[workerIndex] = ws
	a.mu.Unlock()

	return ws
}

// WorkerExited records a worker exit.
func (a *Aggregator) WorkerExited(workerIndex int, exitCode int, uptime time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ws, ok := a.workers[workerIndex]; ok {
		ws.RecordExit(exitCode)
	}
	a.exitCodes[exitCode]++
	a.uptimeDigest.Add(uptime.Seconds(), 1)
}

// BarrierWaited records one worker's wait at a synchronization point.
func (a *Aggregator) BarrierWaited(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.barrierWaits++
	a.barrierDigest.Add(d.Seconds(), 1)
	if d > a.barrierWaitMax {
		a.barrierWaitMax = d
	}
}

// Worker returns the stats record for a worker index, or nil.
func (a *Aggregator) Worker(workerIndex int) *WorkerStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workers[workerIndex]
}

// Snapshot computes the current aggregate view.
func (a *Aggregator) Snapshot() *AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	agg := &AggregatedStats{
		TotalWorkers: len(a.workers),
		ExitCodes:    make(map[int]int, len(a.exitCodes)),
	}

	for _, ws := range a.workers {
		if ws.Exited() {
			agg.TotalExits++
			if ws.ExitCode() != 0 {
				agg.FailedExits++
			}
		} else {
			agg.ActiveWorkers++
		}
		agg.TotalOutputLines += ws.OutputLines.Load()
		agg.TotalOutputWarnings += ws.OutputWarnings.Load()
		agg.TotalOutputTruncated += ws.OutputTruncated.Load()
	}
	for code, n := range a.exitCodes {
		agg.ExitCodes[code] = n
	}

	if agg.TotalExits > 0 {
		agg.UptimeP50 = secondsToDuration(a.uptimeDigest.Quantile(0.50))
		agg.UptimeP95 = secondsToDuration(a.uptimeDigest.Quantile(0.95))
		agg.UptimeP99 = secondsToDuration(a.uptimeDigest.Quantile(0.99))
	}

	agg.BarrierWaitCount = a.barrierWaits
	if a.barrierWaits > 0 {
		agg.BarrierWaitP50 = secondsToDuration(a.barrierDigest.Quantile(0.50))
		agg.BarrierWaitP95 = secondsToDuration(a.barrierDigest.Quantile(0.95))
		agg.BarrierWaitMax = a.barrierWaitMax
	}

	return agg
}

func secondsToDuration(s float64) time.Duration {
	if s < 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// Package metrics provides Prometheus metrics for go-train-spawn.
//
// One collector observes the whole process: launches started and finished,
// worker process lifecycle, and the result rendezvous. Cardinality stays
// low; per-worker series are keyed by local rank, which is bounded by the
// group size.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Launch lifecycle ---
var (
	spawnInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "train_spawn_info",
			Help: "Information about the launcher (value always 1)",
		},
		[]string{"version", "start_mode"},
	)

	spawnWorldSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "train_spawn_world_size",
			Help: "Number of workers per launch",
		},
	)

	spawnLaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "train_spawn_launches_total",
			Help: "Launches by outcome",
		},
		[]string{"outcome"}, // "success" | "failure"
	)

	spawnLaunchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "train_spawn_launch_duration_seconds",
			Help:    "Wall-clock duration of a launch, start to recovery",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 1800, 3600, 14400},
		},
	)

	spawnLaunchInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "train_spawn_launch_in_progress",
			Help: "1 while a launch is running",
		},
	)
)

// --- Worker lifecycle ---
var (
	spawnActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "train_spawn_active_workers",
			Help: "Currently running worker processes",
		},
	)

	spawnWorkerStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "train_spawn_worker_starts_total",
			Help: "Total worker process starts",
		},
	)

	spawnWorkerExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "train_spawn_worker_exits_total",
			Help: "Worker exits by exit code category",
		},
		[]string{"category"}, // "success", "error", "signal"
	)

	spawnWorkerUptimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "train_spawn_worker_uptime_seconds",
			Help:    "Worker lifetime from start to exit",
			Buckets: []float64{1, 5, 30, 60, 300, 600, 1800, 3600, 7200},
		},
	)
)

// --- Result rendezvous ---
var (
	spawnResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "train_spawn_results_total",
			Help: "Result records received from worker groups",
		},
	)

	spawnResultBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "train_spawn_result_bytes",
			Help: "Size of the most recent result record",
		},
	)
)

// Collector manages all Prometheus metrics for the launcher.
type Collector struct {
	mu sync.Mutex

	startTime time.Time

	// For summary generation
	peakActive    int
	activeWorkers int
	totalStarts   int64
	totalLaunches int64
	exitCodes     map[int]int64
	uptimes       []time.Duration
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version   string
	StartMode string
	WorldSize int
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		startTime: time.Now(),
		exitCodes: make(map[int]int64),
	}

	registry.MustRegister(
		spawnInfo,
		spawnWorldSize,
		spawnLaunchesTotal,
		spawnLaunchDurationSeconds,
		spawnLaunchInProgress,

		spawnActiveWorkers,
		spawnWorkerStartsTotal,
		spawnWorkerExitsTotal,
		spawnWorkerUptimeSeconds,

		spawnResultsTotal,
		spawnResultBytes,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	spawnInfo.WithLabelValues(version, cfg.StartMode).Set(1)
	spawnWorldSize.Set(float64(cfg.WorldSize))

	return c
}

// LaunchStarted records the beginning of a launch.
func (c *Collector) LaunchStarted(procs int) {
	spawnWorldSize.Set(float64(procs))
	spawnLaunchInProgress.Set(1)

	c.mu.Lock()
	c.totalLaunches++
	c.mu.Unlock()
}

// LaunchCompleted records the end of a launch.
func (c *Collector) LaunchCompleted(success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	spawnLaunchesTotal.WithLabelValues(outcome).Inc()
	spawnLaunchDurationSeconds.Observe(duration.Seconds())
	spawnLaunchInProgress.Set(0)
}

// ResultReceived records the arrival of the group's result record.
func (c *Collector) ResultReceived(bytes int) {
	spawnResultsTotal.Inc()
	spawnResultBytes.Set(float64(bytes))
}

// WorkerStarted records a worker process start.
func (c *Collector) WorkerStarted() {
	spawnWorkerStartsTotal.Inc()

	c.mu.Lock()
	c.totalStarts++
	c.activeWorkers++
	if c.activeWorkers > c.peakActive {
		c.peakActive = c.activeWorkers
	}
	active := c.activeWorkers
	c.mu.Unlock()

	spawnActiveWorkers.Set(float64(active))
}

// WorkerExited records a worker process exit.
func (c *Collector) WorkerExited(exitCode int, uptime time.Duration) {
	category := "error"
	if exitCode == 0 {
		category = "success"
	} else if exitCode > 128 {
		category = "signal"
	}
	spawnWorkerExitsTotal.WithLabelValues(category).Inc()
	spawnWorkerUptimeSeconds.Observe(uptime.Seconds())

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.uptimes = append(c.uptimes, uptime)
	if c.activeWorkers > 0 {
		c.activeWorkers--
	}
	active := c.activeWorkers
	c.mu.Unlock()

	spawnActiveWorkers.Set(float64(active))
}

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration      time.Duration
	TotalLaunches int64
	PeakWorkers   int
	TotalStarts   int64
	ExitCodes     map[int]int64
	UptimeP50     time.Duration
	UptimeP95     time.Duration
	UptimeP99     time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:      time.Since(c.startTime),
		TotalLaunches: c.totalLaunches,
		PeakWorkers:   c.peakActive,
		TotalStarts:   c.totalStarts,
		ExitCodes:     make(map[int]int64),
	}
	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	if len(c.uptimes) > 0 {
		sorted := make([]time.Duration, len(c.uptimes))
		copy(sorted, c.uptimes)
		sortDurations(sorted)

		s.UptimeP50 = percentile(sorted, 0.50)
		s.UptimeP95 = percentile(sorted, 0.95)
		s.UptimeP99 = percentile(sorted, 0.99)
	}

	return s
}

// PeakWorkers returns the peak concurrent worker count.
func (c *Collector) PeakWorkers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// TotalStarts returns the total number of worker starts.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}

// ExitCodeString formats an exit code for display.
func ExitCodeString(code int) string {
	if code > 128 {
		return strconv.Itoa(code) + " (signal " + strconv.Itoa(code-128) + ")"
	}
	return strconv.Itoa(code)
}

// sortDurations sorts a slice of durations in place.
func sortDurations(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j] < d[j-1]; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// percentile returns the value at the given percentile (0.0-1.0).
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

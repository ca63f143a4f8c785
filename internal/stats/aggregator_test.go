package stats

import (
	"strings"
	"testing"
	"time"
)

func TestWorkerStats_Lifecycle(t *testing.T) {
	ws := NewWorkerStats(2)
	if ws.WorkerIndex != 2 {
		t.Errorf("WorkerIndex = %d, want 2", ws.WorkerIndex)
	}
	if ws.Exited() {
		t.Error("new worker should not be exited")
	}

	ws.RecordExit(1)
	if !ws.Exited() {
		t.Error("worker should be exited after RecordExit")
	}
	if ws.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", ws.ExitCode())
	}

	// A second exit does not overwrite the first.
	ws.RecordExit(137)
	if ws.ExitCode() != 1 {
		t.Errorf("ExitCode after duplicate RecordExit = %d, want 1", ws.ExitCode())
	}
}

func TestWorkerStats_UptimeFrozenAfterExit(t *testing.T) {
	ws := NewWorkerStats(0)
	ws.RecordExit(0)
	u1 := ws.Uptime()
	time.Sleep(10 * time.Millisecond)
	u2 := ws.Uptime()
	if u1 != u2 {
		t.Errorf("uptime changed after exit: %v then %v", u1, u2)
	}
}

func TestAggregator_Snapshot(t *testing.T) {
	a := NewAggregator()

	for i := 0; i < 4; i++ {
		ws := a.WorkerStarted(i)
		ws.OutputLines.Add(int64(10 * (i + 1)))
	}

	a.WorkerExited(0, 0, 10*time.Second)
	a.WorkerExited(1, 0, 20*time.Second)
	a.WorkerExited(2, 1, 5*time.Second)

	agg := a.Snapshot()
	if agg.TotalWorkers != 4 {
		t.Errorf("TotalWorkers = %d, want 4", agg.TotalWorkers)
	}
	if agg.TotalExits != 3 {
		t.Errorf("TotalExits = %d, want 3", agg.TotalExits)
	}
	if agg.ActiveWorkers != 1 {
		t.Errorf("ActiveWorkers = %d, want 1", agg.ActiveWorkers)
	}
	if agg.FailedExits != 1 {
		t.Errorf("FailedExits = %d, want 1", agg.FailedExits)
	}
	if agg.ExitCodes[0] != 2 || agg.ExitCodes[1] != 1 {
		t.Errorf("ExitCodes = %v", agg.ExitCodes)
	}
	if agg.TotalOutputLines != 100 {
		t.Errorf("TotalOutputLines = %d, want 100", agg.TotalOutputLines)
	}
	if agg.UptimeP50 <= 0 {
		t.Errorf("UptimeP50 = %v, want > 0", agg.UptimeP50)
	}
	if agg.UptimeP99 < agg.UptimeP50 {
		t.Errorf("UptimeP99 %v < UptimeP50 %v", agg.UptimeP99, agg.UptimeP50)
	}
}

func TestAggregator_BarrierWaits(t *testing.T) {
	a := NewAggregator()

	for i := 1; i <= 10; i++ {
		a.BarrierWaited(time.Duration(i) * 10 * time.Millisecond)
	}

	agg := a.Snapshot()
	if agg.BarrierWaitCount != 10 {
		t.Errorf("BarrierWaitCount = %d, want 10", agg.BarrierWaitCount)
	}
	if agg.BarrierWaitMax != 100*time.Millisecond {
		t.Errorf("BarrierWaitMax = %v, want 100ms", agg.BarrierWaitMax)
	}
	if agg.BarrierWaitP50 <= 0 || agg.BarrierWaitP50 > agg.BarrierWaitMax {
		t.Errorf("BarrierWaitP50 = %v out of range", agg.BarrierWaitP50)
	}
}

func TestAggregator_EmptySnapshot(t *testing.T) {
	agg := NewAggregator().Snapshot()
	if agg.TotalWorkers != 0 || agg.TotalExits != 0 {
		t.Errorf("empty snapshot = %+v", agg)
	}
	if agg.UptimeP50 != 0 {
		t.Errorf("UptimeP50 = %v, want 0 with no exits", agg.UptimeP50)
	}
}

func TestFormatExitSummary(t *testing.T) {
	a := NewAggregator()
	a.WorkerStarted(0)
	a.WorkerStarted(1)
	a.WorkerExited(0, 0, 30*time.Second)
	a.WorkerExited(1, 143, 30*time.Second)

	out := FormatExitSummary(a.Snapshot(), SummaryConfig{
		WorldSize:   2,
		StartMode:   "spawn",
		Duration:    45 * time.Second,
		MetricsAddr: "localhost:9110",
	})

	for _, want := range []string{
		"go-train-spawn Exit Summary",
		"World Size:             2",
		"Start Mode:             spawn",
		"Workers Started:      2",
		"(SIGTERM)",
		"http://localhost:9110/metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestFormatExitSummary_NilStats(t *testing.T) {
	out := FormatExitSummary(nil, SummaryConfig{WorldSize: 4, Duration: time.Minute})
	if !strings.Contains(out, "World Size:             4") {
		t.Errorf("basic summary missing world size:\n%s", out)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatDuration(3*time.Hour + 25*time.Minute + 45*time.Second); got != "03:25:45" {
		t.Errorf("FormatDuration = %q", got)
	}
	if got := FormatNumber(1_500_000); got != "1.5M" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatNumber(2_500); got != "2.5K" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatBytes(2_500_000); got != "2.50 MB" {
		t.Errorf("FormatBytes = %q", got)
	}
	if got := FormatMs(250 * time.Microsecond); got != "250 µs" {
		t.Errorf("FormatMs = %q", got)
	}
	if got := FormatMs(15 * time.Millisecond); got != "15 ms" {
		t.Errorf("FormatMs = %q", got)
	}
}

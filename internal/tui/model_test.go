package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zredeaux65/go-train-spawn/internal/stats"
)

type fakeSource struct {
	stats *stats.AggregatedStats
}

func (s fakeSource) Snapshot() *stats.AggregatedStats { return s.stats }

func sampleStats() *stats.AggregatedStats {
	return &stats.AggregatedStats{
		TotalWorkers:        4,
		ActiveWorkers:       3,
		TotalExits:          1,
		FailedExits:         0,
		ExitCodes:           map[int]int{0: 1},
		TotalOutputLines:    1500,
		TotalOutputWarnings: 2,
		UptimeP50:           3 * time.Second,
		UptimeP95:           4 * time.Second,
		UptimeP99:           4 * time.Second,
		BarrierWaitCount:    8,
		BarrierWaitP50:      2 * time.Millisecond,
		BarrierWaitP95:      9 * time.Millisecond,
		BarrierWaitMax:      15 * time.Millisecond,
	}
}

func newTestModel() Model {
	return New(Config{
		WorldSize:   4,
		Entry:       "train-resnet",
		StartMode:   "spawn",
		MetricsAddr: "127.0.0.1:17091",
		StatsSource: fakeSource{stats: sampleStats()},
	})
}

func TestNew_Defaults(t *testing.T) {
	m := newTestModel()
	if m.width != 80 || m.height != 24 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}
	if m.WorldSize() != 4 {
		t.Errorf("WorldSize = %d", m.WorldSize())
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	keys := map[string]tea.KeyMsg{
		"q":      {Type: tea.KeyRunes, Runes: []rune("q")},
		"ctrl+c": {Type: tea.KeyCtrlC},
		"esc":    {Type: tea.KeyEsc},
	}
	for name, msg := range keys {
		m := newTestModel()
		updated, cmd := m.Update(msg)
		got := updated.(Model)
		if !got.quitting {
			t.Errorf("key %q did not set quitting", name)
		}
		if cmd == nil {
			t.Errorf("key %q returned no quit command", name)
		}
	}
}

func TestUpdate_TickFetchesStats(t *testing.T) {
	m := newTestModel()
	updated, cmd := m.Update(TickMsg(time.Now()))
	got := updated.(Model)

	if got.stats == nil {
		t.Fatal("tick did not fetch a snapshot")
	}
	if got.ActiveWorkers() != 3 {
		t.Errorf("ActiveWorkers = %d", got.ActiveWorkers())
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestUpdate_WindowSize(t *testing.T) {
	m := newTestModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := updated.(Model)
	if got.width != 120 || got.height != 40 {
		t.Errorf("size = %dx%d", got.width, got.height)
	}
}

func TestUpdate_StatsMsg(t *testing.T) {
	m := New(Config{WorldSize: 2})
	s := sampleStats()
	updated, _ := m.Update(StatsMsg{Stats: s})
	got := updated.(Model)
	if got.stats == nil || got.stats.TotalOutputLines != 1500 {
		t.Errorf("stats = %+v", got.stats)
	}
}

func TestUpdate_ExitCodeToggle(t *testing.T) {
	m := newTestModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if !updated.(Model).showExits {
		t.Error("e did not toggle the exit-code section")
	}
}

func TestStartProgress(t *testing.T) {
	m := newTestModel()
	updated, _ := m.Update(TickMsg(time.Now()))
	got := updated.(Model)
	if p := got.StartProgress(); p != 0.75 {
		t.Errorf("StartProgress = %v, want 0.75", p)
	}

	empty := New(Config{})
	if p := empty.StartProgress(); p != 0 {
		t.Errorf("StartProgress with zero world size = %v", p)
	}
}

func TestView_Sections(t *testing.T) {
	m := newTestModel()
	updated, _ := m.Update(TickMsg(time.Now()))
	view := updated.(Model).View()

	for _, want := range []string{
		"go-train-spawn",
		"train-resnet",
		"spawn",
		"3 / 4",
		"Worker Uptime",
		"Barrier Waits",
		"Worker Output",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestView_QuittingIsEmpty(t *testing.T) {
	m := newTestModel()
	updated, _ := m.Update(QuitMsg{})
	if got := updated.(Model).View(); got != "" {
		t.Errorf("quitting view = %q", got)
	}
}

func TestView_NoStatsYet(t *testing.T) {
	m := New(Config{WorldSize: 2, Entry: "demo", StartMode: "fork"})
	if !strings.Contains(m.View(), "waiting for first snapshot") {
		t.Error("placeholder missing before the first snapshot")
	}
}

func TestGetGroupHealth(t *testing.T) {
	tests := []struct {
		total, failed int
		want          GroupHealth
	}{
		{0, 0, GroupHealthOK},
		{4, 0, GroupHealthOK},
		{4, 1, GroupHealthDegraded},
		{4, 4, GroupHealthFailing},
	}
	for _, tt := range tests {
		if got := GetGroupHealth(tt.total, tt.failed); got != tt.want {
			t.Errorf("GetGroupHealth(%d, %d) = %v, want %v", tt.total, tt.failed, got, tt.want)
		}
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := RenderProgressBar(0.5, 20)
	if !strings.Contains(bar, "50%") {
		t.Errorf("bar = %q", bar)
	}
	// Out-of-range inputs clamp instead of panicking.
	if got := RenderProgressBar(1.5, 20); !strings.Contains(got, "150%") && got == "" {
		t.Error("overfull bar rendered empty")
	}
	_ = RenderProgressBar(-0.1, 5)
}

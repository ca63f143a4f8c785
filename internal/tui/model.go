package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zredeaux65/go-train-spawn/internal/stats"
)

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries an updated snapshot.
type StatsMsg struct {
	Stats *stats.AggregatedStats
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// StatsSource provides aggregated worker statistics.
type StatsSource interface {
	Snapshot() *stats.AggregatedStats
}

// Config holds TUI configuration.
type Config struct {
	WorldSize   int
	Entry       string
	StartMode   string
	MetricsAddr string
	StatsSource StatsSource
}

// Model represents the TUI state.
type Model struct {
	worldSize   int
	entry       string
	startMode   string
	metricsAddr string

	stats      *stats.AggregatedStats
	startTime  time.Time
	lastUpdate time.Time
	showExits  bool

	width  int
	height int

	statsSource StatsSource

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		worldSize:   cfg.WorldSize,
		entry:       cfg.Entry,
		startMode:   cfg.StartMode,
		metricsAddr: cfg.MetricsAddr,
		statsSource: cfg.StatsSource,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.showExits = !m.showExits
			return m, nil
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.statsSource != nil {
			m.stats = m.statsSource.Snapshot()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StatsMsg:
		m.stats = msg.Stats
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Elapsed returns the time since the launch started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// ActiveWorkers returns the current live worker count.
func (m Model) ActiveWorkers() int {
	if m.stats == nil {
		return 0
	}
	return m.stats.ActiveWorkers
}

// WorldSize returns the configured worker count.
func (m Model) WorldSize() int {
	return m.worldSize
}

// StartProgress returns how much of the group is up (0.0 to 1.0).
func (m Model) StartProgress() float64 {
	if m.worldSize == 0 {
		return 0
	}
	return float64(m.ActiveWorkers()) / float64(m.worldSize)
}

// SendStats sends a stats update to a running TUI program.
func SendStats(p *tea.Program, s *stats.AggregatedStats) {
	if p != nil {
		p.Send(StatsMsg{Stats: s})
	}
}

// SendQuit asks a running TUI program to exit.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

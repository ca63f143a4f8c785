package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zredeaux65/go-train-spawn/internal/stats"
)

// render builds the full dashboard frame.
func (m Model) render() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("go-train-spawn"))
	b.WriteString("\n")

	b.WriteString(m.renderRunInfo())
	b.WriteString(m.renderGroup())

	if m.stats != nil {
		b.WriteString(m.renderUptime())
		b.WriteString(m.renderBarriers())
		b.WriteString(m.renderOutput())
		if m.showExits {
			b.WriteString(m.renderExitCodes())
		}
	} else {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("waiting for first snapshot..."))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderRunInfo() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Run"))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Entry", m.entry))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Start Mode", m.startMode))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Elapsed", stats.FormatDuration(m.Elapsed())))
	b.WriteString("\n")
	if m.metricsAddr != "" {
		b.WriteString(RenderKeyValue("Metrics", "http://"+m.metricsAddr+"/metrics"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderGroup() string {
	var totalExits, failedExits int
	if m.stats != nil {
		totalExits = m.stats.TotalExits
		failedExits = m.stats.FailedExits
	}

	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Worker Group"))
	b.WriteString("\n")

	b.WriteString(GetGroupHealthLabel(totalExits, failedExits))
	b.WriteString("\n")

	label := fmt.Sprintf("%d / %d", m.ActiveWorkers(), m.worldSize)
	b.WriteString(RenderKeyValue("Active", label))
	b.WriteString("\n")

	barWidth := m.width - 30
	if barWidth > 50 {
		barWidth = 50
	}
	b.WriteString(RenderProgressBar(m.StartProgress(), barWidth))
	b.WriteString("\n")

	b.WriteString(RenderKeyValue("Exited", fmt.Sprintf("%d (%d failed)", totalExits, failedExits)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderUptime() string {
	if m.stats.TotalExits == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Worker Uptime"))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("p50", m.stats.UptimeP50.Round(timeRounding(m.stats.UptimeP50)).String()))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("p95", m.stats.UptimeP95.Round(timeRounding(m.stats.UptimeP95)).String()))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("p99", m.stats.UptimeP99.Round(timeRounding(m.stats.UptimeP99)).String()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderBarriers() string {
	if m.stats.BarrierWaitCount == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Barrier Waits"))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Count", stats.FormatNumber(m.stats.BarrierWaitCount)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("p50", stats.FormatMs(m.stats.BarrierWaitP50)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("p95", stats.FormatMs(m.stats.BarrierWaitP95)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("max", stats.FormatMs(m.stats.BarrierWaitMax)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderOutput() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Worker Output"))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Lines", stats.FormatNumber(m.stats.TotalOutputLines)))
	b.WriteString("\n")

	warn := stats.FormatNumber(m.stats.TotalOutputWarnings)
	if m.stats.TotalOutputWarnings > 0 {
		warn = valueWarnStyle.Render(warn)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Warnings:"), warn))
	b.WriteString("\n")

	if m.stats.TotalOutputTruncated > 0 {
		b.WriteString(RenderKeyValue("Truncated", stats.FormatNumber(m.stats.TotalOutputTruncated)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderExitCodes() string {
	if len(m.stats.ExitCodes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Exit Codes"))
	b.WriteString("\n")

	codes := make([]int, 0, len(m.stats.ExitCodes))
	for code := range m.stats.ExitCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	for _, code := range codes {
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(fmt.Sprintf("code %d:", code)),
			GetExitCodeStyle(code).Render(fmt.Sprintf("%d workers", m.stats.ExitCodes[code])),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	return footerStyle.Render("q: quit  e: exit codes  r: refresh") + "\n"
}

// timeRounding picks a display precision that keeps short and long uptimes
// equally readable.
func timeRounding(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Millisecond
	}
	return 10 * time.Millisecond
}

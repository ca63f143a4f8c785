package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// WorldSize is the number of workers that were requested
	WorldSize int

	// StartMode names how workers were started ("spawn" or "fork")
	StartMode string

	// Duration is the total run duration
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address, if one ran
	MetricsAddr string
}

// FormatExitSummary formats aggregated stats for display at program exit.
func FormatExitSummary(agg *AggregatedStats, cfg SummaryConfig) string {
	if agg == nil {
		return formatBasicSummary(cfg)
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("                          go-train-spawn Exit Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	// Run info
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "World Size:             %d\n", cfg.WorldSize)
	if cfg.StartMode != "" {
		fmt.Fprintf(&b, "Start Mode:             %s\n", cfg.StartMode)
	}
	b.WriteString("\n")

	// Worker lifecycle
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
	b.WriteString("                                Worker Lifecycle\n")
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

	fmt.Fprintf(&b, "  Workers Started:      %d\n", agg.TotalWorkers)
	fmt.Fprintf(&b, "  Workers Exited:       %d\n", agg.TotalExits)
	if agg.ActiveWorkers > 0 {
		fmt.Fprintf(&b, "  Still Running:        %d\n", agg.ActiveWorkers)
	}
	if agg.FailedExits > 0 {
		fmt.Fprintf(&b, "  Failed Exits:         %d\n", agg.FailedExits)
	}
	b.WriteString("\n")

	// Uptime distribution
	if agg.TotalExits > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                              Uptime Distribution\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatDuration(agg.UptimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatDuration(agg.UptimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatDuration(agg.UptimeP99))
		b.WriteString("\n")
	}

	// Barrier waits
	if agg.BarrierWaitCount > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                 Barrier Waits\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  Waits Recorded:       %s\n", FormatNumber(agg.BarrierWaitCount))
		fmt.Fprintf(&b, "  P50:                  %s\n", FormatMs(agg.BarrierWaitP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(agg.BarrierWaitP95))
		fmt.Fprintf(&b, "  Max:                  %s\n", FormatMs(agg.BarrierWaitMax))
		b.WriteString("\n")
	}

	// Output pipeline health
	if agg.TotalOutputLines > 0 || agg.TotalOutputTruncated > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                 Worker Output\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  Lines Forwarded:      %s\n", FormatNumber(agg.TotalOutputLines))
		if agg.TotalOutputWarnings > 0 {
			fmt.Fprintf(&b, "  Warning Lines:        %s\n", FormatNumber(agg.TotalOutputWarnings))
		}
		if agg.TotalOutputTruncated > 0 {
			fmt.Fprintf(&b, "  Truncated Lines:      %s\n", FormatNumber(agg.TotalOutputTruncated))
		}
		b.WriteString("\n")
	}

	// Exit codes
	if len(agg.ExitCodes) > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                   Exit Codes\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		codes := make([]int, 0, len(agg.ExitCodes))
		for code := range agg.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), agg.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// formatBasicSummary formats a minimal summary when no aggregator ran.
func formatBasicSummary(cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("                          go-train-spawn Exit Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "World Size:             %d\n\n", cfg.WorldSize)

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

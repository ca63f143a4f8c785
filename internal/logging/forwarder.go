package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// MaxLineLength is the maximum length of a single worker output line
	// before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines retained per worker
	// for the exit report.
	MaxBufferedLines = 100

	// maxScanTokenSize bounds how much of a single line the scanner will
	// hold before the stream read aborts. It is well above MaxLineLength so
	// oversized lines are truncated rather than killing the stream.
	maxScanTokenSize = 1 << 20
)

// WorkerOutput forwards stdout/stderr lines from worker processes into the
// orchestrator's structured log. It buffers the most recent lines per
// worker and counts lines dropped to truncation, so noisy workers degrade
// observability rather than memory.
type WorkerOutput struct {
	logger *slog.Logger

	mu      sync.Mutex
	recent  map[int]*ringBuffer
	dropped atomic.Int64
}

type ringBuffer struct {
	lines []string
	idx   int
}

// NewWorkerOutput creates a forwarder writing to logger.
func NewWorkerOutput(logger *slog.Logger) *WorkerOutput {
	return &WorkerOutput{
		logger: logger,
		recent: map[int]*ringBuffer{},
	}
}

// Forward reads r line by line until EOF, logging each line attributed to
// the worker and stream. Run it in a goroutine per stream.
func (o *WorkerOutput) Forward(worker int, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, MaxLineLength), maxScanTokenSize)

	for scanner.Scan() {
		o.handleLine(worker, stream, scanner.Text())
	}
	err := scanner.Err()
	if err == bufio.ErrTooLong {
		o.dropped.Add(1)
		o.logger.Warn("worker_output_line_too_long",
			"worker", worker,
			"stream", stream,
			"max_bytes", maxScanTokenSize,
		)
		return
	}
	if err != nil && !strings.Contains(err.Error(), "file already closed") {
		o.logger.Debug("worker_output_read_ended",
			"worker", worker,
			"stream", stream,
			"error", err,
		)
	}
}

func (o *WorkerOutput) handleLine(worker int, stream, line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
		o.dropped.Add(1)
	}

	o.mu.Lock()
	buf, ok := o.recent[worker]
	if !ok {
		buf = &ringBuffer{lines: make([]string, MaxBufferedLines)}
		o.recent[worker] = buf
	}
	buf.lines[buf.idx] = line
	buf.idx = (buf.idx + 1) % MaxBufferedLines
	o.mu.Unlock()

	o.logger.Log(nil, classifyLine(line), "worker_output",
		"worker", worker,
		"stream", stream,
		"line", line,
	)
}

// classifyLine picks a log level from line content. Worker logs are debug
// by default; lines that look like failures surface at warn.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "panic:") ||
		strings.Contains(lower, "fatal") ||
		(strings.Contains(lower, "error") && !strings.Contains(lower, "error=nil")) {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}

// RecentLines returns up to n most recent lines for a worker, oldest first.
func (o *WorkerOutput) RecentLines(worker, n int) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf, ok := o.recent[worker]
	if !ok {
		return nil
	}
	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (buf.idx - n + i + MaxBufferedLines) % MaxBufferedLines
		if buf.lines[idx] != "" {
			lines = append(lines, buf.lines[idx])
		}
	}
	return lines
}

// TruncatedLines reports how many lines were truncated across all workers.
func (o *WorkerOutput) TruncatedLines() int64 {
	return o.dropped.Load()
}

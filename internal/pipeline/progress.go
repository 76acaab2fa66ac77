package pipeline

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Reporter receives fire-and-forget progress notifications from the run
// loop. Implementations must not block; there is no acknowledgement or
// backpressure.
type Reporter interface {
	// Progress is emitted at stage boundaries within each image and between
	// archives during the packing pass. major marks the start of a new item.
	Progress(imageIndex, total, step, totalSteps int, major bool)

	// Skipped is emitted exactly once per skipped image.
	Skipped(path, stage, message string)

	// Processed is emitted once inpainting completes so a host can refresh
	// a live preview with the cleaned page.
	Processed(imageIndex int, cleaned image.Image, path string)
}

// NoOpReporter implements Reporter but does nothing. Useful as a default
// when no progress reporting is needed.
type NoOpReporter struct{}

func (NoOpReporter) Progress(imageIndex, total, step, totalSteps int, major bool) {}
func (NoOpReporter) Skipped(path, stage, message string)                          {}
func (NoOpReporter) Processed(imageIndex int, cleaned image.Image, path string)   {}

// ConsoleReporter draws a progress bar on the console and prints one line
// per skipped image.
type ConsoleReporter struct {
	writer         io.Writer
	width          int
	updateInterval time.Duration

	mutex      sync.Mutex
	lastUpdate time.Time
	startTime  time.Time
}

// NewConsoleReporter creates a console progress reporter.
func NewConsoleReporter(writer io.Writer) *ConsoleReporter {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleReporter{
		writer:         writer,
		width:          50,
		updateInterval: 100 * time.Millisecond,
	}
}

func (c *ConsoleReporter) Progress(imageIndex, total, step, totalSteps int, major bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.startTime.IsZero() {
		c.startTime = time.Now()
	}

	now := time.Now()
	last := imageIndex+1 == total && step == totalSteps
	if !major && !last && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now

	if total == 0 {
		return
	}

	current := imageIndex
	if last {
		current = total
	}
	percent := float64(current) / float64(total) * 100.0
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)

	_, _ = fmt.Fprintf(c.writer, "\r[%s] %d/%d (%.1f%%)", bar, current, total, percent)
	if last {
		_, _ = fmt.Fprintf(c.writer, "\ncompleted in %v\n", time.Since(c.startTime).Round(time.Millisecond))
	}
}

func (c *ConsoleReporter) Skipped(path, stage, message string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\nskipped %s (%s: %s)\n", path, stage, message)
}

func (c *ConsoleReporter) Processed(imageIndex int, cleaned image.Image, path string) {}

// LogReporter logs progress through slog.
type LogReporter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogReporter creates a log-based progress reporter.
func NewLogReporter(logger *slog.Logger, level slog.Level) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger, level: level}
}

func (l *LogReporter) Progress(imageIndex, total, step, totalSteps int, major bool) {
	if !major {
		return
	}
	l.logger.Log(nil, l.level, "processing image",
		"image", imageIndex+1,
		"total", total,
	)
}

func (l *LogReporter) Skipped(path, stage, message string) {
	l.logger.Warn("image skipped", "path", path, "stage", stage, "reason", message)
}

func (l *LogReporter) Processed(imageIndex int, cleaned image.Image, path string) {
	l.logger.Debug("image cleaned", "image", imageIndex+1, "path", path)
}

// MultiReporter fans notifications out to several reporters.
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter creates a reporter that forwards to every given reporter.
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

// Add registers another reporter.
func (m *MultiReporter) Add(r Reporter) {
	m.reporters = append(m.reporters, r)
}

func (m *MultiReporter) Progress(imageIndex, total, step, totalSteps int, major bool) {
	for _, r := range m.reporters {
		r.Progress(imageIndex, total, step, totalSteps, major)
	}
}

func (m *MultiReporter) Skipped(path, stage, message string) {
	for _, r := range m.reporters {
		r.Skipped(path, stage, message)
	}
}

func (m *MultiReporter) Processed(imageIndex int, cleaned image.Image, path string) {
	for _, r := range m.reporters {
		r.Processed(imageIndex, cleaned, path)
	}
}

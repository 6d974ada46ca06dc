// Package progress provides a live progress line for interactive runs.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker tracks and displays completion progress while a dispatch runs.
type Tracker struct {
	total     int
	completed int
	failed    int
	startTime time.Time
	mu        sync.Mutex
	writer    io.Writer
	enabled   bool
}

// NewTracker creates a progress tracker for a dispatch of total hosts.
func NewTracker(total int, writer io.Writer, enabled bool) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		writer:    writer,
		enabled:   enabled,
	}
}

// Update records one finished host and redraws the progress line.
func (p *Tracker) Update(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if success {
		p.completed++
	} else {
		p.failed++
	}

	if p.enabled {
		p.draw()
	}
}

// Finish clears the progress line so the summary can take its place.
func (p *Tracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enabled {
		fmt.Fprintf(p.writer, "\r\033[K")
	}
}

// draw renders the current progress line. Caller holds the lock.
func (p *Tracker) draw() {
	done := p.completed + p.failed
	elapsed := time.Since(p.startTime).Round(time.Second)
	fmt.Fprintf(p.writer, "\r\033[K[%d/%d] ✓%d ✗%d %v", done, p.total, p.completed, p.failed, elapsed)
}

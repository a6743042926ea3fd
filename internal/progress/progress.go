package progress

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Tracker handles progress tracking for a firmware scan
type Tracker struct {
	total     int64
	current   int64
	startTime time.Time
}

// NewTracker creates a new progress tracker for a file of total bytes
func NewTracker(total int64) *Tracker {
	return &Tracker{
		total:     total,
		current:   0,
		startTime: time.Now(),
	}
}

// Update records n more bytes as scanned
func (t *Tracker) Update(n int64) {
	atomic.AddInt64(&t.current, n)
}

// Current returns the number of bytes scanned so far
func (t *Tracker) Current() int64 {
	return atomic.LoadInt64(&t.current)
}

// Total returns the file size the tracker was created with
func (t *Tracker) Total() int64 {
	return t.total
}

// GetProgress returns the current progress percentage
func (t *Tracker) GetProgress() float64 {
	if t.total <= 0 {
		return 100
	}
	current := atomic.LoadInt64(&t.current)
	return float64(current) / float64(t.total) * 100
}

// Remaining returns the bytes of the file that were not scanned
func (t *Tracker) Remaining() int64 {
	r := t.total - t.Current()
	if r < 0 {
		return 0
	}
	return r
}

// Elapsed returns the time since the tracker was created
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// String returns a formatted progress string
func (t *Tracker) String() string {
	return fmt.Sprintf("%d of %d bytes (%.1f%%) in %v",
		t.Current(),
		t.total,
		t.GetProgress(),
		t.Elapsed().Round(time.Millisecond),
	)
}

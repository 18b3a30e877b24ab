// Package telemetry keeps rolling per-window frame statistics shared by all
// stream connections.
package telemetry

import (
	"sync"
	"time"

	"pose-stream-server-go/internal/platform/observability"
	"pose-stream-server-go/internal/utils"
)

const (
	logTag = "Telemetry"

	DefaultWindow     = 60 * time.Second
	DefaultBufferSize = 100
)

// Clock returns the current time; tests substitute a fake.
type Clock func() time.Time

type Options struct {
	Window     time.Duration
	BufferSize int
	Clock      Clock
	Logger     *utils.Logger
	Metrics    *observability.Metrics
}

// Snapshot is a point-in-time view of the current window.
type Snapshot struct {
	FramesProcessed     int64   `json:"frames_processed"`
	FramesFailed        int64   `json:"frames_failed"`
	TotalDetections     int64   `json:"total_detections"`
	AvgDetectionsFrame  float64 `json:"avg_detections_per_frame"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	WindowStart         int64   `json:"window_start"`
	WindowSeconds       float64 `json:"window_seconds"`
}

// Aggregator accumulates frame latency and detection counts. When a Record
// call finds the window at or past its length it logs a roll-up line and
// resets before counting the new frame.
type Aggregator struct {
	window  time.Duration
	clock   Clock
	logger  *utils.Logger
	metrics *observability.Metrics

	mu              sync.Mutex
	windowStart     time.Time
	framesProcessed int64
	framesFailed    int64
	totalDetections int64
	latencies       *ring
}

func NewAggregator(opts Options) *Aggregator {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Aggregator{
		window:      opts.Window,
		clock:       opts.Clock,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		windowStart: opts.Clock(),
		latencies:   newRing(opts.BufferSize),
	}
}

// Record counts one completed frame. Failed frames count toward frames
// processed and latency but add no detections.
func (a *Aggregator) Record(latency time.Duration, detections int, ok bool) {
	a.metrics.ObserveFrame(latency, detections, ok)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	if now.Sub(a.windowStart) >= a.window {
		a.rollLocked(now)
	}

	a.framesProcessed++
	a.latencies.push(latency)
	if ok {
		a.totalDetections += int64(detections)
	} else {
		a.framesFailed++
	}
}

func (a *Aggregator) rollLocked(now time.Time) {
	if a.framesProcessed > 0 {
		s := a.snapshotLocked(now)
		a.logger.InfoTag(logTag, "window %.0fs: frames=%d failed=%d detections=%d avg_detections=%.2f avg_latency=%.2fms",
			s.WindowSeconds, s.FramesProcessed, s.FramesFailed, s.TotalDetections, s.AvgDetectionsFrame, s.AvgProcessingTimeMs)
	}
	a.framesProcessed = 0
	a.framesFailed = 0
	a.totalDetections = 0
	a.latencies.reset()
	a.windowStart = now
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(a.clock())
}

func (a *Aggregator) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{
		FramesProcessed: a.framesProcessed,
		FramesFailed:    a.framesFailed,
		TotalDetections: a.totalDetections,
		WindowStart:     a.windowStart.UnixMilli(),
		WindowSeconds:   now.Sub(a.windowStart).Seconds(),
	}
	if a.framesProcessed > 0 {
		s.AvgDetectionsFrame = float64(a.totalDetections) / float64(a.framesProcessed)
	}
	if avg, ok := a.latencies.mean(); ok {
		s.AvgProcessingTimeMs = float64(avg) / float64(time.Millisecond)
	}
	return s
}

// ring is a fixed-capacity buffer that evicts the oldest entry on overflow.
type ring struct {
	buf  []time.Duration
	next int
	full bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]time.Duration, capacity)}
}

func (r *ring) push(d time.Duration) {
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

func (r *ring) mean() (time.Duration, bool) {
	n := r.len()
	if n == 0 {
		return 0, false
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += r.buf[i]
	}
	return sum / time.Duration(n), true
}

func (r *ring) reset() {
	r.next = 0
	r.full = false
}

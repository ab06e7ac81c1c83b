package profiler

import (
	"fmt"
	"log"
	"runtime"
	"time"
)

// Counters is a snapshot of the monotonically increasing tracer totals the profiler turns into rates.
type Counters struct {
	// Samples is the number of completed samples since the tracer was created.
	Samples uint64
	// Dispatches is the number of generate and bounce dispatches issued so far.
	Dispatches uint64
}

// Report is one interval's worth of rates.
type Report struct {
	FPS              float64
	SamplesPerSec    float64
	DispatchesPerSec float64
	HeapMB           float64
	AllocRateMB      float64
	GCCount          uint32
	LastPauseUs      uint64
	MaxPauseUs       uint64
	SysMB            float64
}

// String formats the report the way it is logged.
func (r Report) String() string {
	return fmt.Sprintf("FPS: %.2f | Samples: %.2f/s | Dispatches: %.2f/s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		r.FPS, r.SamplesPerSec, r.DispatchesPerSec, r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB)
}

// Profiler tracks presented frame rate, tracing throughput and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	lastCounters   Counters
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return NewProfilerWithInterval(time.Second)
}

// NewProfilerWithInterval creates a Profiler that reports every interval. Non-positive intervals use 1 second.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfilerWithInterval(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
	}
}

// Tick should be called once per presented frame with the current tracer totals.
// Logs a Report when the update interval has elapsed.
//
// Parameters:
//   - counters: the current tracer totals
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(counters Counters) bool {
	report, ok := p.tick(time.Now(), counters)
	if ok {
		log.Printf("[Profiler] %s", report)
	}
	return ok
}

func (p *Profiler) tick(now time.Time, counters Counters) (Report, bool) {
	p.frameCount++
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Report{}, false
	}
	secs := elapsed.Seconds()

	r := Report{
		FPS:              float64(p.frameCount) / secs,
		SamplesPerSec:    float64(delta(counters.Samples, p.lastCounters.Samples)) / secs,
		DispatchesPerSec: float64(delta(counters.Dispatches, p.lastCounters.Dispatches)) / secs,
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint.
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / secs

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > r.MaxPauseUs {
				r.MaxPauseUs = pause
			}
		}
	}

	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastCounters = counters
	return r, true
}

// delta tolerates a counter that went backwards, e.g. after the tracer was replaced.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

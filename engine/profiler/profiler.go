package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// FrameStats holds the work a frame submitted to the renderer.
type FrameStats struct {
	Draws          int
	Clears         int
	Builds         int
	ShaderSwitches int
	TargetSwitches int
}

func (f FrameStats) add(o FrameStats) FrameStats {
	return FrameStats{
		Draws:          f.Draws + o.Draws,
		Clears:         f.Clears + o.Clears,
		Builds:         f.Builds + o.Builds,
		ShaderSwitches: f.ShaderSwitches + o.ShaderSwitches,
		TargetSwitches: f.TargetSwitches + o.TargetSwitches,
	}
}

// delta returns the work recorded between two cumulative renderer snapshots.
func delta(from, to renderer.Stats) FrameStats {
	return FrameStats{
		Draws:          to.Draws - from.Draws,
		Clears:         to.Clears - from.Clears,
		Builds:         to.VertexArraysCreated - from.VertexArraysCreated,
		ShaderSwitches: to.ProgramBinds - from.ProgramBinds,
		TargetSwitches: to.TargetBinds - from.TargetBinds,
	}
}

// Profiler tracks frame rate, per-frame renderer work and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger         *slog.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	previous renderer.Stats
	primed   bool
	frame    FrameStats
	interval FrameStats
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second and the logger discards output.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         renderer.NopLogger(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Reset sets the baseline the next frame is measured from.
//
// Parameters:
//   - stats: the renderer's current cumulative stats
func (p *Profiler) Reset(stats renderer.Stats) {
	p.previous = stats
	p.primed = true
}

// LastFrame returns the work of the most recently ticked frame.
//
// Returns:
//   - FrameStats: the frame's counts
func (p *Profiler) LastFrame() FrameStats {
	return p.frame
}

// Tick should be called once per frame, after the frame's work was submitted.
// The frame's work is the difference between stats and the previous tick (or Reset). Logs performance
// statistics when the update interval has elapsed: FPS, average work per frame, heap usage, allocation
// rate, GC count/pause times and total memory.
//
// Parameters:
//   - stats: the renderer's current cumulative stats
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats renderer.Stats) bool {
	if p.primed {
		p.frame = delta(p.previous, stats)
	} else {
		p.frame = FrameStats{}
	}
	p.previous = stats
	p.primed = true
	p.interval = p.interval.add(p.frame)

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	perFrame := func(n int) float64 {
		return float64(n) / float64(p.frameCount)
	}

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("profiler",
		"fps", fps,
		"draws", perFrame(p.interval.Draws),
		"clears", perFrame(p.interval.Clears),
		"builds", p.interval.Builds,
		"shaderSwitches", perFrame(p.interval.ShaderSwitches),
		"targetSwitches", perFrame(p.interval.TargetSwitches),
		"heapMB", allocMB,
		"allocRateMB", allocRateMB,
		"gc", gcCount,
		"gcLastPauseUs", lastPauseUs,
		"gcMaxPauseUs", maxPauseUs,
		"sysMB", sysMB,
	)

	p.frameCount = 0
	p.interval = FrameStats{}
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

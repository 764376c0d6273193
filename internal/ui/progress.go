package ui

import (
	"sync"
	"time"
)

const (
	// speedWindow is how often throughput is sampled.
	speedWindow = 500 * time.Millisecond

	speedSmoothing = 0.2
	etaSmoothing   = 0.3
)

// ProgressTracker turns raw counters into speed and ETA figures. It is safe
// for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	paused      bool
	stageStart  time.Time
	errors      int
	warnings    int

	lastETA time.Duration

	lastCurrent  int
	lastSample   time.Time
	speed        SpeedStats
	speedSamples int
	sparkline    *Sparkline
}

// SpeedStats is throughput in files per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	Paused      bool
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stageStart: now,
		lastSample: now,
		sparkline:  NewSparkline(60),
	}
}

// SetStage starts a new stage and resets the speed and ETA history.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = now
	p.lastETA = 0
	p.lastCurrent = 0
	p.lastSample = now
	p.speed = SpeedStats{}
	p.speedSamples = 0
	p.sparkline.Clear()
}

// Update records the processed count. While paused the speed window is
// restarted so a pause does not drag the average down.
func (p *ProgressTracker) Update(current int, file string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if file != "" {
		p.currentFile = file
	}

	now := time.Now()
	if paused || p.paused {
		p.paused = paused
		p.lastCurrent = current
		p.lastSample = now
		return
	}

	elapsed := now.Sub(p.lastSample)
	if elapsed < speedWindow {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		rate := float64(delta) / elapsed.Seconds()
		p.speed.Current = rate
		p.speedSamples++
		if p.speedSamples == 1 {
			p.speed.Avg = rate
		} else {
			p.speed.Avg = speedSmoothing*rate + (1-speedSmoothing)*p.speed.Avg
		}
		p.speed.Peak = max(p.speed.Peak, rate)
		p.sparkline.Add(rate)
	}
	p.lastCurrent = current
	p.lastSample = now
}

func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stage returns the current stage.
func (p *ProgressTracker) Stage() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

// Progress is current/total in [0, 1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress()
}

func (p *ProgressTracker) progress() float64 {
	if p.total == 0 {
		return 0
	}
	return min(float64(p.current)/float64(p.total), 1)
}

// Stats returns a snapshot. It takes the write lock because the ETA is
// smoothed against the previous call.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    p.progress(),
		ETA:         p.calculateETA(),
		CurrentFile: p.currentFile,
		Paused:      p.paused,
		ErrorCount:  p.errors,
		WarnCount:   p.warnings,
		Speed:       p.speed,
	}
}

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	progress := p.progress()
	if p.paused || progress <= 0 || progress >= 1 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}

	p.lastETA = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(p.lastETA))
	return p.lastETA
}

// RenderSparkline draws the throughput history at width columns, or at the
// full history length when width is not positive.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sparkline.Render(width)
}

func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.speed
}

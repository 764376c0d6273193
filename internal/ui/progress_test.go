package ui

import (
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_SetStageResets(t *testing.T) {
	// Given: a tracker with progress in the scan stage
	tracker := NewProgressTracker()
	tracker.SetStage(StageScanning, 10)
	tracker.Update(5, "a.go", false)

	// When: moving to the index stage
	tracker.SetStage(StageIndexing, 100)

	// Then: counters start over
	stats := tracker.Stats()
	assert.Equal(t, StageIndexing, stats.Stage)
	assert.Equal(t, 100, stats.Total)
	assert.Equal(t, 0, stats.Current)
	assert.Empty(t, stats.CurrentFile)
}

func TestProgressTracker_Progress(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    float64
	}{
		{"zero total", 0, 0, 0},
		{"not started", 0, 100, 0},
		{"half", 50, 100, 0.5},
		{"done", 100, 100, 1},
		{"overshoot clamps", 150, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(StageIndexing, tt.total)
			tracker.Update(tt.current, "", false)
			assert.InDelta(t, tt.want, tracker.Progress(), 0.001)
		})
	}
}

func TestProgressTracker_KeepsLastFile(t *testing.T) {
	// Given: a tracker that saw a file
	tracker := NewProgressTracker()
	tracker.SetStage(StageIndexing, 10)
	tracker.Update(1, "a.go", false)

	// When: an update carries no file
	tracker.Update(2, "", false)

	// Then: the previous file is still shown
	assert.Equal(t, "a.go", tracker.Stats().CurrentFile)
}

func TestProgressTracker_SpeedAndETA(t *testing.T) {
	// Given: a tracker in the index stage
	tracker := NewProgressTracker()
	tracker.SetStage(StageIndexing, 1000)

	// When: progress is reported after a full speed window
	time.Sleep(speedWindow + 50*time.Millisecond)
	tracker.Update(100, "", false)

	// Then: speed and ETA are positive
	stats := tracker.Stats()
	assert.Greater(t, stats.Speed.Current, 0.0)
	assert.Equal(t, stats.Speed.Current, stats.Speed.Avg)
	assert.Equal(t, stats.Speed.Current, stats.Speed.Peak)
	assert.Greater(t, stats.ETA, time.Duration(0))
	assert.Equal(t, 1, tracker.sparkline.Count())
}

func TestProgressTracker_PausedHasNoETA(t *testing.T) {
	// Given: a tracker half way through
	tracker := NewProgressTracker()
	tracker.SetStage(StageIndexing, 100)
	tracker.Update(50, "", false)

	// When: the run is paused
	tracker.Update(50, "", true)

	// Then: no ETA is reported and no speed sample is taken
	stats := tracker.Stats()
	assert.True(t, stats.Paused)
	assert.Zero(t, stats.ETA)
	assert.Zero(t, tracker.sparkline.Count())
}

func TestProgressTracker_CountsErrors(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{File: "a.go"})
	tracker.AddError(ErrorEvent{File: "b.go", IsWarn: true})
	tracker.AddError(ErrorEvent{File: "c.go"})

	stats := tracker.Stats()
	assert.Equal(t, 2, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
}

func TestProgressTracker_ConcurrentUse(t *testing.T) {
	// Given: a tracker shared by writers and readers
	tracker := NewProgressTracker()
	tracker.SetStage(StageIndexing, 1000)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for j := range 100 {
				tracker.Update(i*100+j, "f.go", false)
				_ = tracker.Stats()
				_ = tracker.RenderSparkline(20)
			}
		})
	}
	wg.Wait()

	// Then: the state is still consistent
	assert.LessOrEqual(t, tracker.Progress(), 1.0)
}

func TestSparkline_Render(t *testing.T) {
	// Given: a sparkline with a rising series
	s := NewSparkline(3)
	for _, v := range []float64{0, 3.5, 7} {
		s.Add(v)
	}

	// Then: bars rise from lowest to highest
	assert.Equal(t, "▁▄█", s.Render(0))
	assert.Equal(t, 7.0, s.Peak())
}

func TestSparkline_RenderNarrowAndPartial(t *testing.T) {
	// Given: a sparkline holding two samples
	s := NewSparkline(10)
	s.Add(1)
	s.Add(2)

	// Then: the newest samples are right aligned
	assert.Equal(t, "   ▄█", s.Render(5))

	// And: the newest width samples are kept when narrower
	assert.Equal(t, "█", s.Render(1))
}

func TestSparkline_Wraps(t *testing.T) {
	// Given: more samples than the window holds
	s := NewSparkline(4)
	for _, v := range []float64{100, 1, 1, 1, 1, 1, 1, 1} {
		s.Add(v)
	}

	// Then: the old peak has rolled out and the width is unchanged
	out := s.Render(0)
	assert.Equal(t, 4, utf8.RuneCountInString(out))
	assert.Equal(t, strings.Repeat("█", 4), out)
}

func TestSparkline_Empty(t *testing.T) {
	s := NewSparkline(0)
	assert.Equal(t, strings.Repeat("▁", 60), s.Render(0))

	s.Add(3)
	s.Clear()
	assert.Zero(t, s.Count())
	assert.Equal(t, "▁▁▁", s.Render(3))
}

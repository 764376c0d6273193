package ui

import "strings"

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a fixed-size ring of samples drawn as block characters.
type Sparkline struct {
	samples []float64
	head    int
	count   int
	peak    float64
}

// NewSparkline keeps the last size samples. Size defaults to 60.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{samples: make([]float64, size)}
}

func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++

	s.peak = max(s.peak, value)
	// Old peaks roll out of the window once per full cycle.
	if s.count%len(s.samples) == 0 {
		s.peak = 0
		for _, v := range s.samples {
			s.peak = max(s.peak, v)
		}
	}
}

// recent returns up to n samples, oldest first.
func (s *Sparkline) recent(n int) []float64 {
	size := len(s.samples)
	have := min(s.count, size)
	n = min(n, have)

	out := make([]float64, 0, n)
	for i := have - n; i < have; i++ {
		idx := i
		if s.count >= size {
			idx = (s.head + i) % size
		}
		out = append(out, s.samples[idx])
	}
	return out
}

// Render draws the newest width samples, right-aligned and padded with
// spaces. A non-positive width draws the whole window.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	values := s.recent(width)

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	for _, v := range values {
		sb.WriteRune(SparklineChars[s.level(v)])
	}
	return sb.String()
}

func (s *Sparkline) level(v float64) int {
	if s.peak <= 0 || v <= 0 {
		return 0
	}
	top := len(SparklineChars) - 1
	return min(max(int(v/s.peak*float64(top)), 0), top)
}

func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
	s.peak = 0
}

func (s *Sparkline) Count() int    { return s.count }
func (s *Sparkline) Peak() float64 { return s.peak }

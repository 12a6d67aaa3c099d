// Package estimate tracks the adaptive display range for potential values.
package estimate

import "math"

const (
	// Floor is the lowest value the estimate ever takes.
	Floor = 5.0
	// ResetValue is the estimate after a full reset.
	ResetValue = 10.0
	// MinSamples is the number of positive cells an update needs.
	MinSamples = 10
	// OutlierRatio triggers the conservative estimate when max/mean exceeds it.
	OutlierRatio = 10.0
)

// Range holds the current MaxEstimate. The zero value is not usable; call New.
type Range struct {
	value float64
}

// New returns a range at ResetValue.
func New() *Range { return &Range{value: ResetValue} }

// Value returns the current estimate.
func (r *Range) Value() float64 { return r.value }

// Baseline computes the estimate for a fresh run over an n×n grid with the
// given obstacle counts.
func Baseline(n, impassable, difficult int) float64 {
	base := math.Max(float64(n)*0.5, 10)
	cells := n * n
	if cells == 0 {
		return base
	}
	obstacles := (float64(impassable) + 0.5*float64(difficult)) / float64(cells)
	return base * (1 + 2*obstacles)
}

// Init sets the estimate from grid composition.
func (r *Range) Init(n, impassable, difficult int) float64 {
	r.value = Baseline(n, impassable, difficult)
	return r.value
}

// AfterTerrainEdit applies the reset used when terrain changes.
func (r *Range) AfterTerrainEdit(n int) float64 {
	r.value = math.Max(float64(n)*0.6, 12)
	return r.value
}

// AfterVariantSwitch applies the reset used when the neighborhood changes.
func (r *Range) AfterVariantSwitch(n int) float64 {
	r.value = math.Max(float64(n)*0.5, 10)
	return r.value
}

// Reset returns the estimate to ResetValue.
func (r *Range) Reset() float64 {
	r.value = ResetValue
	return r.value
}

// Stats summarises the positive cells of a sample.
type Stats struct {
	Count int
	Max   float64
	Mean  float64
}

// Summarise collects Stats over cells with a value greater than zero.
func Summarise(sample []float32) Stats {
	var s Stats
	var sum float64
	for _, v := range sample {
		if v <= 0 {
			continue
		}
		f := float64(v)
		s.Count++
		sum += f
		if f > s.Max {
			s.Max = f
		}
	}
	if s.Count > 0 {
		s.Mean = sum / float64(s.Count)
	}
	return s
}

// Update adapts the estimate to a fresh sample and reports whether it changed.
func (r *Range) Update(sample []float32) bool {
	s := Summarise(sample)
	if s.Count < MinSamples {
		return false
	}
	prev := r.value
	ratio := s.Max / r.value
	switch {
	case ratio < 0.4:
		r.value = math.Max(s.Max*1.4, Floor)
	case ratio < 0.7:
		r.value = math.Max(s.Max*1.2, 8)
	case ratio > 0.9:
		r.value = s.Max * 1.15
	}
	if s.Mean > 0 && s.Max/s.Mean > OutlierRatio {
		if conservative := s.Mean * 3; conservative < 0.8*r.value {
			r.value = math.Max(conservative, 10)
		}
	}
	if r.value < Floor {
		r.value = Floor
	}
	return r.value != prev
}

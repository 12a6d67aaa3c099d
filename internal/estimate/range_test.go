package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBaseline(t *testing.T) {
	assert.InDelta(t, 16, Baseline(32, 0, 0), 1e-9)
	assert.InDelta(t, 10, Baseline(8, 0, 0), 1e-9)
	assert.InDelta(t, 14, Baseline(10, 10, 20), 1e-9)
}

func TestResets(t *testing.T) {
	r := New()
	assert.Equal(t, ResetValue, r.Value())
	assert.InDelta(t, 12, r.AfterTerrainEdit(8), 1e-9)
	assert.InDelta(t, 60, r.AfterTerrainEdit(100), 1e-9)
	assert.InDelta(t, 10, r.AfterVariantSwitch(8), 1e-9)
	assert.InDelta(t, 32, r.AfterVariantSwitch(64), 1e-9)
	assert.Equal(t, ResetValue, r.Reset())
}

func TestUpdateTiers(t *testing.T) {
	tests := []struct {
		name    string
		sample  []float32
		want    float64
		changed bool
	}{
		{"low ratio shrinks to floor", filled(12, 1), Floor, true},
		{"mid ratio", filled(10, 5), 8, true},
		{"dead band", filled(10, 8), ResetValue, false},
		{"high ratio grows", filled(10, 9.5), 9.5 * 1.15, true},
		{"too few samples", filled(9, 1), ResetValue, false},
		{"zeros ignored", append(filled(9, 1), filled(50, 0)...), ResetValue, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			assert.Equal(t, tt.changed, r.Update(tt.sample))
			assert.InDelta(t, tt.want, r.Value(), 1e-5)
		})
	}
}

func TestOutlierGuard(t *testing.T) {
	r := New()
	r.AfterTerrainEdit(200)
	sample := append([]float32{80}, filled(99, 0.5)...)
	assert.True(t, r.Update(sample))
	assert.InDelta(t, 10, r.Value(), 1e-9)
}

func TestNeverBelowFloor(t *testing.T) {
	r := New()
	samples := [][]float32{
		filled(20, 0.001),
		filled(20, 1),
		append([]float32{1}, filled(40, 0.01)...),
		filled(11, 0.5),
	}
	for i := 0; i < 20; i++ {
		r.Update(samples[i%len(samples)])
		assert.GreaterOrEqual(t, r.Value(), Floor)
	}
}

func TestSummarise(t *testing.T) {
	s := Summarise([]float32{0, 1, 3, -1})
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 3, s.Max, 1e-9)
	assert.InDelta(t, 2, s.Mean, 1e-9)
}

// Package convergence decides when iterated potential updates have settled.
package convergence

import "math"

// Tolerance is the absolute per-cell difference below which two snapshots
// are considered equal.
const Tolerance = 1e-6

// Detector compares each sample against the one it retained from the
// previous check. It is not safe for concurrent use; the driver owns it.
type Detector struct {
	retained []float32
	valid    bool
	checks   int
}

// New returns a detector with no retained snapshot.
func New() *Detector { return &Detector{} }

// Check reports whether sample matches the retained snapshot within
// Tolerance, then retains a copy of sample for the next call.
func (d *Detector) Check(sample []float32) bool {
	converged := d.valid && len(d.retained) == len(sample) && withinTolerance(d.retained, sample)
	if cap(d.retained) < len(sample) {
		d.retained = make([]float32, len(sample))
	}
	d.retained = d.retained[:len(sample)]
	copy(d.retained, sample)
	d.valid = true
	d.checks++
	return converged
}

// Invalidate drops the retained snapshot so the next Check cannot report
// convergence.
func (d *Detector) Invalidate() {
	d.valid = false
	d.checks = 0
}

// Checks counts Check calls since the last Invalidate.
func (d *Detector) Checks() int { return d.checks }

func withinTolerance(a, b []float32) bool {
	for i := range a {
		if math.Abs(float64(a[i])-float64(b[i])) > Tolerance {
			return false
		}
	}
	return true
}

package terrain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrMalformed reports persisted terrain that does not describe a complete
// N×N grid of canonical weights.
var ErrMalformed = errors.New("malformed terrain")

// Decode parses an n×n CSV of cell weights (0, 0.3 or 1).
func Decode(r io.Reader, n int) (*Grid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) != n {
		return nil, fmt.Errorf("%w: expected %d rows, got %d", ErrMalformed, n, len(records))
	}
	g := New(n)
	for y, row := range records {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrMalformed, y, len(row), n)
		}
		for x, field := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: cell (%d,%d): %v", ErrMalformed, x, y, err)
			}
			class, ok := ClassFromWeight(v)
			if !ok {
				return nil, fmt.Errorf("%w: cell (%d,%d) has weight %v", ErrMalformed, x, y, v)
			}
			g.Set(x, y, class)
		}
	}
	return g, nil
}

// LoadOrFallback decodes terrain and falls back to the deterministic maze when
// the input is malformed, so callers are always left with a runnable grid.
func LoadOrFallback(r io.Reader, n int, logger *zap.Logger) (*Grid, bool) {
	g, err := Decode(r, n)
	if err == nil {
		return g, true
	}
	if logger != nil {
		logger.Warn("Terrain could not be loaded; using fallback maze", zap.Int("size", n), zap.Error(err))
	}
	return Fallback(n), false
}

// Encode writes the grid as CSV rows of cell weights.
func Encode(w io.Writer, g *Grid) error {
	n := g.N()
	row := make([]float32, n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			row[x] = g.At(x, y).Weight()
		}
		if err := writeRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

// EncodeValues writes an arbitrary row-major n×n float buffer using the same
// CSV shape as Encode.
func EncodeValues(w io.Writer, values []float32, n int) error {
	if n <= 0 || len(values) != n*n {
		return fmt.Errorf("encoding values: buffer of %d cells is not %d×%d", len(values), n, n)
	}
	for y := 0; y < n; y++ {
		if err := writeRow(w, values[y*n:(y+1)*n]); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, row []float32) error {
	cw := csv.NewWriter(w)
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	if err := cw.Write(fields); err != nil {
		return fmt.Errorf("writing terrain row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Fallback builds the deterministic maze used when persisted terrain is
// unusable: an impassable border ring, a periodic impassable lattice and
// periodic difficult cells, with the center kept open for the goal.
func Fallback(n int) *Grid {
	g := New(n)
	n = g.N()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			switch {
			case x == 0 || y == 0 || x == n-1 || y == n-1:
				g.Set(x, y, Impassable)
			case (x%4 == 0 && y%2 == 0) || (y%4 == 0 && x%2 == 0):
				g.Set(x, y, Impassable)
			case (x+y)%7 == 0:
				g.Set(x, y, Difficult)
			}
		}
	}
	c := g.Center()
	g.Set(c.X, c.Y, Open)
	return g
}

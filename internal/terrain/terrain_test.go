package terrain

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClassValid(t *testing.T) {
	for _, c := range []Class{Open, Difficult, Impassable} {
		assert.True(t, c.Valid(), c.String())
	}
	assert.False(t, Class(3).Valid())
	assert.False(t, Class(7).Valid())
}

func TestDecodeRoundTrip(t *testing.T) {
	g := New(4)
	g.Set(1, 0, Impassable)
	g.Set(2, 3, Difficult)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g))

	got, err := Decode(&buf, 4)
	require.NoError(t, err)
	assert.Equal(t, g.Cells(), got.Cells())
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"too few rows":   "1,1\n",
		"short row":      "1,1\n1\n",
		"unparsable":     "1,x\n1,1\n",
		"unknown weight": "1,0.5\n1,1\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input), 2)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestLoadOrFallbackRecovers(t *testing.T) {
	g, ok := LoadOrFallback(strings.NewReader("garbage"), 8, zaptest.NewLogger(t))
	assert.False(t, ok)
	assert.Equal(t, Fallback(8).Cells(), g.Cells())

	g, ok = LoadOrFallback(strings.NewReader("1,0\n0.3,1\n"), 2, zaptest.NewLogger(t))
	assert.True(t, ok)
	assert.Equal(t, Impassable, g.At(1, 0))
	assert.Equal(t, Difficult, g.At(0, 1))
}

func TestFallbackMazeLayout(t *testing.T) {
	g := Fallback(32)
	n := g.N()
	for i := 0; i < n; i++ {
		assert.Equal(t, Impassable, g.At(i, 0))
		assert.Equal(t, Impassable, g.At(i, n-1))
		assert.Equal(t, Impassable, g.At(0, i))
		assert.Equal(t, Impassable, g.At(n-1, i))
	}
	assert.Equal(t, Impassable, g.At(4, 2))
	assert.Equal(t, Impassable, g.At(2, 4))
	assert.Equal(t, Difficult, g.At(3, 4))
	c := g.Center()
	assert.Equal(t, Open, g.At(c.X, c.Y))

	again := Fallback(32)
	assert.Equal(t, g.Cells(), again.Cells(), "fallback maze must be deterministic")
}

func TestNearestOpen(t *testing.T) {
	g := New(5)
	g.Fill(Impassable)
	g.Set(4, 4, Open)
	assert.Equal(t, Cell{X: 4, Y: 4}, g.NearestOpen(g.Center()))

	g.Set(2, 2, Open)
	assert.Equal(t, Cell{X: 2, Y: 2}, g.NearestOpen(g.Center()))
}

func TestWeightsAndCounts(t *testing.T) {
	g := New(3)
	g.Set(0, 0, Impassable)
	g.Set(1, 0, Difficult)
	g.Set(2, 0, Difficult)

	w := g.Weights()
	assert.Equal(t, []float32{0, 0.3, 0.3, 1, 1, 1, 1, 1, 1}, w)

	imp, diff := g.Counts()
	assert.Equal(t, 1, imp)
	assert.Equal(t, 2, diff)
}

func TestEncodeValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeValues(&buf, []float32{1, 0.5, 0, 0.25}, 2))
	assert.Equal(t, "1,0.5\n0,0.25\n", buf.String())
	assert.Error(t, EncodeValues(&buf, []float32{1}, 2))
}

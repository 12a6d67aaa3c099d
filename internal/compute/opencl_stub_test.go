//go:build !opencl

package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenCLUnavailableWithoutTag(t *testing.T) {
	_, err := New(Options{Name: "opencl", N: 8})
	assert.ErrorIs(t, err, ErrUnavailable)
}

//go:build !opencl

package compute

import (
	"fmt"

	"go.uber.org/zap"
)

// NewOpenCL reports that OpenCL support was not compiled in.
func NewOpenCL(n int, logger *zap.Logger) (Backend, error) {
	return nil, fmt.Errorf("%w: OpenCL support is not enabled; rebuild with -tags opencl", ErrUnavailable)
}

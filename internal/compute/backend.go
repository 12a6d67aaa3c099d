// Package compute defines the contract between the simulation driver and the
// substrate that executes per-cell kernels, plus the backends shipped with the
// module.
package compute

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"flowfield/internal/field"
	"flowfield/internal/kernel"
)

var (
	// ErrUnavailable reports a backend that cannot be initialised on this host.
	ErrUnavailable = errors.New("compute backend unavailable")
	// ErrUnknownReceipt reports a Wait on a receipt that was never issued or
	// has already been collected.
	ErrUnknownReceipt = errors.New("unknown dispatch receipt")
	// ErrBinding reports buffers or extents that do not fit the kernel.
	ErrBinding = errors.New("invalid kernel binding")
)

// BufferID names a device-resident buffer.
type BufferID uint8

const (
	BufferTerrain BufferID = iota
	BufferPotentialA
	BufferPotentialB
	BufferFlow
)

func (b BufferID) String() string {
	switch b {
	case BufferTerrain:
		return "terrain"
	case BufferPotentialA:
		return "potential-a"
	case BufferPotentialB:
		return "potential-b"
	case BufferFlow:
		return "flow"
	default:
		return fmt.Sprintf("buffer(%d)", uint8(b))
	}
}

// PotentialBuffer maps a ping-pong slot to its buffer.
func PotentialBuffer(s field.Slot) BufferID {
	if s == field.SlotB {
		return BufferPotentialB
	}
	return BufferPotentialA
}

// KernelID names a compiled kernel.
type KernelID uint8

const (
	KernelPropagateRelaxed KernelID = iota
	KernelPropagateAxis
	KernelFlowRelaxed
	KernelFlowAxis
)

func (k KernelID) String() string {
	switch k {
	case KernelPropagateRelaxed:
		return "propagate_relaxed"
	case KernelPropagateAxis:
		return "propagate_axis"
	case KernelFlowRelaxed:
		return "flow_relaxed"
	case KernelFlowAxis:
		return "flow_axis"
	default:
		return fmt.Sprintf("kernel(%d)", uint8(k))
	}
}

// IsFlow reports whether the kernel writes the flow buffer.
func (k KernelID) IsFlow() bool { return k == KernelFlowRelaxed || k == KernelFlowAxis }

// PropagateKernel selects the propagation kernel for a variant.
func PropagateKernel(v kernel.Variant) KernelID {
	if v == kernel.NoRelaxation {
		return KernelPropagateAxis
	}
	return KernelPropagateRelaxed
}

// FlowKernel selects the flow kernel for a variant.
func FlowKernel(v kernel.Variant) KernelID {
	if v == kernel.NoRelaxation {
		return KernelFlowAxis
	}
	return KernelFlowRelaxed
}

// Bindings wires buffers into a kernel invocation. The terrain buffer is
// always bound implicitly.
type Bindings struct {
	Source BufferID
	Dest   BufferID
	Goal   int
}

// Extent is the grid range a dispatch covers.
type Extent struct {
	W, H int
}

// Receipt identifies an in-flight dispatch.
type Receipt uint64

// Backend executes kernels over device buffers. Dispatch only enqueues work;
// results in the destination buffer are valid once Wait returns nil.
type Backend interface {
	Name() string
	Write(ctx context.Context, id BufferID, data []float32) error
	Dispatch(ctx context.Context, k KernelID, b Bindings, ext Extent) (Receipt, error)
	Wait(ctx context.Context, r Receipt) error
	Readback(ctx context.Context, id BufferID) ([]float32, error)
	Close() error
}

// Options configures backend construction.
type Options struct {
	// Name is "cpu" or "opencl".
	Name string
	// N is the grid side length.
	N int
	// Workers bounds CPU parallelism; zero means GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

// New constructs the backend named in opts.
func New(opts Options) (Backend, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	switch strings.ToLower(opts.Name) {
	case "", "cpu":
		return NewCPU(opts.N, opts.Workers, opts.Logger), nil
	case "opencl":
		return NewOpenCL(opts.N, opts.Logger)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, opts.Name)
}

func bufferLen(id BufferID, n int) int {
	if id == BufferFlow {
		return 2 * n * n
	}
	return n * n
}

func validate(k KernelID, b Bindings, ext Extent, n int) error {
	if ext.W != n || ext.H != n {
		return fmt.Errorf("%w: extent %dx%d does not match grid %d", ErrBinding, ext.W, ext.H, n)
	}
	if b.Goal < 0 || b.Goal >= n*n {
		return fmt.Errorf("%w: goal index %d out of range", ErrBinding, b.Goal)
	}
	isPotential := func(id BufferID) bool { return id == BufferPotentialA || id == BufferPotentialB }
	if !isPotential(b.Source) {
		return fmt.Errorf("%w: %s cannot be a kernel source", ErrBinding, b.Source)
	}
	if k.IsFlow() {
		if b.Dest != BufferFlow {
			return fmt.Errorf("%w: %s must write the flow buffer", ErrBinding, k)
		}
		return nil
	}
	if !isPotential(b.Dest) || b.Dest == b.Source {
		return fmt.Errorf("%w: %s needs distinct potential buffers", ErrBinding, k)
	}
	return nil
}

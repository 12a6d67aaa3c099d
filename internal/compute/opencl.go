//go:build opencl

package compute

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jgillich/go-opencl/cl"
	"go.uber.org/zap"
)

const fieldKernelSource = `
inline float propagate_cell(const int n, const int goal, const int diag,
    __global const float* weights, __global const float* src, const int idx)
{
    if (idx == goal) {
        return 1.0f;
    }
    float w = weights[idx];
    if (w <= 0.0f) {
        return 0.0f;
    }
    int x = idx % n;
    int y = idx / n;
    float best = 0.0f;
    for (int dy = -1; dy <= 1; dy++) {
        for (int dx = -1; dx <= 1; dx++) {
            if (dx == 0 && dy == 0) {
                continue;
            }
            int corner = dx != 0 && dy != 0;
            if (corner && !diag) {
                continue;
            }
            int nx = x + dx;
            int ny = y + dy;
            if (nx < 0 || ny < 0 || nx >= n || ny >= n) {
                continue;
            }
            float c = src[ny * n + nx] * w;
            if (corner) {
                c *= M_SQRT1_2_F;
            }
            best = fmax(best, c);
        }
    }
    return best;
}

inline float2 flow_cell(const int n, const int diag,
    __global const float* weights, __global const float* pot, const int idx)
{
    float own = pot[idx];
    float2 v = (float2)(0.0f, 0.0f);
    if (weights[idx] <= 0.0f || own == 0.0f) {
        return v;
    }
    int x = idx % n;
    int y = idx / n;
    for (int dy = -1; dy <= 1; dy++) {
        for (int dx = -1; dx <= 1; dx++) {
            if (dx == 0 && dy == 0) {
                continue;
            }
            int corner = dx != 0 && dy != 0;
            if (corner && !diag) {
                continue;
            }
            int nx = x + dx;
            int ny = y + dy;
            if (nx < 0 || ny < 0 || nx >= n || ny >= n) {
                continue;
            }
            int ni = ny * n + nx;
            float p = pot[ni];
            if (weights[ni] <= 0.0f || p == 0.0f) {
                continue;
            }
            float2 dir = (float2)((float)dx, (float)dy);
            if (corner) {
                dir *= M_SQRT1_2_F;
            }
            v += (p - own) * dir;
        }
    }
    return v;
}

__kernel void propagate_relaxed(const int n, const int goal,
    __global const float* weights, __global const float* src, __global float* dst)
{
    int idx = get_global_id(0);
    if (idx < n * n) {
        dst[idx] = propagate_cell(n, goal, 1, weights, src, idx);
    }
}

__kernel void propagate_axis(const int n, const int goal,
    __global const float* weights, __global const float* src, __global float* dst)
{
    int idx = get_global_id(0);
    if (idx < n * n) {
        dst[idx] = propagate_cell(n, goal, 0, weights, src, idx);
    }
}

__kernel void flow_relaxed(const int n, const int goal,
    __global const float* weights, __global const float* pot, __global float* dst)
{
    int idx = get_global_id(0);
    if (idx < n * n) {
        vstore2(flow_cell(n, 1, weights, pot, idx), idx, dst);
    }
}

__kernel void flow_axis(const int n, const int goal,
    __global const float* weights, __global const float* pot, __global float* dst)
{
    int idx = get_global_id(0);
    if (idx < n * n) {
        vstore2(flow_cell(n, 0, weights, pot, idx), idx, dst);
    }
}`

// OpenCL runs the field kernels on the first GPU (or CPU) device exposed by
// the installed ICD loader. The command queue is in-order, so waiting on a
// receipt drains everything enqueued before it.
type OpenCL struct {
	n          int
	deviceName string
	logger     *zap.Logger

	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernels map[KernelID]*cl.Kernel
	buffers map[BufferID]*cl.MemObject

	mu          sync.Mutex
	next        Receipt
	outstanding map[Receipt]*cl.Event
}

func pickDevice(platforms []*cl.Platform) *cl.Device {
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, err := p.GetDevices(kind)
			if err != nil && err != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0]
			}
		}
	}
	return nil
}

// NewOpenCL compiles the field kernels and allocates device buffers for an
// n×n grid.
func NewOpenCL(n int, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, msg, err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms available", ErrUnavailable)
	}
	device := pickDevice(platforms)
	if device == nil {
		return nil, fmt.Errorf("%w: no suitable OpenCL devices found", ErrUnavailable)
	}

	o := &OpenCL{
		n:           n,
		deviceName:  device.Name(),
		logger:      logger.Named("opencl"),
		kernels:     make(map[KernelID]*cl.Kernel, 4),
		buffers:     make(map[BufferID]*cl.MemObject, 4),
		outstanding: make(map[Receipt]*cl.Event),
	}
	if err := o.init(device); err != nil {
		o.Close()
		return nil, err
	}
	o.logger.Info("OpenCL backend ready", zap.String("device", o.deviceName), zap.Int("size", n))
	return o, nil
}

func (o *OpenCL) init(device *cl.Device) error {
	var err error
	if o.context, err = cl.CreateContext([]*cl.Device{device}); err != nil {
		return fmt.Errorf("%w: creating OpenCL context: %v", ErrUnavailable, err)
	}
	if o.queue, err = o.context.CreateCommandQueue(device, 0); err != nil {
		return fmt.Errorf("%w: creating OpenCL command queue: %v", ErrUnavailable, err)
	}
	if o.program, err = o.context.CreateProgramWithSource([]string{fieldKernelSource}); err != nil {
		return fmt.Errorf("%w: creating OpenCL program: %v", ErrUnavailable, err)
	}
	if err := o.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		if buildErr, ok := err.(cl.BuildError); ok {
			return fmt.Errorf("%w: building OpenCL program: %s", ErrUnavailable, string(buildErr))
		}
		return fmt.Errorf("%w: building OpenCL program: %v", ErrUnavailable, err)
	}
	for _, k := range []KernelID{KernelPropagateRelaxed, KernelPropagateAxis, KernelFlowRelaxed, KernelFlowAxis} {
		kern, err := o.program.CreateKernel(k.String())
		if err != nil {
			return fmt.Errorf("%w: creating kernel %s: %v", ErrUnavailable, k, err)
		}
		o.kernels[k] = kern
	}
	for _, id := range []BufferID{BufferTerrain, BufferPotentialA, BufferPotentialB, BufferFlow} {
		buf, err := o.context.CreateEmptyBuffer(cl.MemReadWrite, 4*bufferLen(id, o.n))
		if err != nil {
			return fmt.Errorf("%w: allocating %s buffer: %v", ErrUnavailable, id, err)
		}
		o.buffers[id] = buf
	}
	return nil
}

// Name identifies the backend and device.
func (o *OpenCL) Name() string { return "opencl:" + o.deviceName }

// Write uploads data and blocks until the transfer completes.
func (o *OpenCL) Write(ctx context.Context, id BufferID, data []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, ok := o.buffers[id]
	if !ok {
		return fmt.Errorf("%w: unknown buffer %s", ErrBinding, id)
	}
	if len(data) != bufferLen(id, o.n) {
		return fmt.Errorf("%w: %s holds %d values, got %d", ErrBinding, id, bufferLen(id, o.n), len(data))
	}
	ev, err := o.queue.EnqueueWriteBufferFloat32(buf, true, 0, data, nil)
	if err != nil {
		return fmt.Errorf("writing %s: %w", id, err)
	}
	if ev != nil {
		ev.Release()
	}
	return nil
}

// Dispatch enqueues one work item per cell.
func (o *OpenCL) Dispatch(ctx context.Context, k KernelID, b Bindings, ext Extent) (Receipt, error) {
	if err := validate(k, b, ext, o.n); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	kern, ok := o.kernels[k]
	if !ok {
		return 0, fmt.Errorf("%w: unknown kernel %s", ErrBinding, k)
	}
	if err := kern.SetArgs(
		int32(o.n),
		int32(b.Goal),
		o.buffers[BufferTerrain],
		o.buffers[b.Source],
		o.buffers[b.Dest],
	); err != nil {
		return 0, fmt.Errorf("setting %s arguments: %w", k, err)
	}
	ev, err := o.queue.EnqueueNDRangeKernel(kern, nil, []int{o.n * o.n}, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("enqueueing %s: %w", k, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.outstanding[o.next] = ev
	return o.next, nil
}

// Wait drains the queue up to and including the receipt's kernel.
func (o *OpenCL) Wait(ctx context.Context, r Receipt) error {
	o.mu.Lock()
	ev, ok := o.outstanding[r]
	if ok {
		delete(o.outstanding, r)
	}
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownReceipt, r)
	}
	if ev != nil {
		defer ev.Release()
	}

	done := make(chan error, 1)
	go func() { done <- o.queue.Finish() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("waiting for dispatch %d: %w", r, err)
		}
		return nil
	}
}

// Readback downloads a buffer into a fresh slice.
func (o *OpenCL) Readback(ctx context.Context, id BufferID) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, ok := o.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown buffer %s", ErrBinding, id)
	}
	out := make([]float32, bufferLen(id, o.n))
	ev, err := o.queue.EnqueueReadBufferFloat32(buf, true, 0, out, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	if ev != nil {
		ev.Release()
	}
	return out, nil
}

// Close releases every OpenCL object in reverse order of creation.
func (o *OpenCL) Close() error {
	o.mu.Lock()
	for r, ev := range o.outstanding {
		if ev != nil {
			ev.Release()
		}
		delete(o.outstanding, r)
	}
	o.mu.Unlock()
	for id, buf := range o.buffers {
		buf.Release()
		delete(o.buffers, id)
	}
	for k, kern := range o.kernels {
		kern.Release()
		delete(o.kernels, k)
	}
	if o.program != nil {
		o.program.Release()
		o.program = nil
	}
	if o.queue != nil {
		o.queue.Release()
		o.queue = nil
	}
	if o.context != nil {
		o.context.Release()
		o.context = nil
	}
	return nil
}

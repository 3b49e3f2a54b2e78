// Package gpulife is the device engine: one kernel invocation per cell,
// grouped into 8×8 workgroups, ping-ponging between two device buffers.
package gpulife

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/logging"
)

// WorkgroupSize is the side of a square workgroup.
const WorkgroupSize = 8

//go:embed life.kage
var kageSource []byte

// KageSource returns the shader form of the kernel for shader backends.
func KageSource() []byte { return kageSource }

// invoke is the per-cell kernel body. It must match core.StepCell bit for bit.
func invoke(src, dst []uint32, n, x, y int) {
	core.StepCell(src, dst, n, x, y)
}

// Engine owns two device buffers. bufs[read] is the current generation; the
// bind group for that parity reads it and writes the other buffer.
type Engine struct {
	n      int
	dev    device.Backend
	kernel device.Kernel
	bufs   [2]device.Buffer
	groups [2]device.BindGroup
	read   int
	gen    uint64
	stage  []uint32
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates the buffers and compiles the kernel on dev. Failure here is an
// initialization error: the caller must not start the frame loop.
func New(dev device.Backend, n int, opts ...Option) (*Engine, error) {
	if n <= 0 {
		return nil, fmt.Errorf("device engine: invalid grid size %d", n)
	}
	e := &Engine{n: n, dev: dev, stage: make([]uint32, n*n)}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDiscard(e.log)

	var err error
	for i, label := range [2]string{"Buffer A", "Buffer B"} {
		if e.bufs[i], err = dev.NewBuffer(label, n*n); err != nil {
			return nil, fmt.Errorf("device engine: %w", err)
		}
	}
	e.groups[0] = device.BindGroup{Read: e.bufs[0], Write: e.bufs[1]}
	e.groups[1] = device.BindGroup{Read: e.bufs[1], Write: e.bufs[0]}

	e.kernel, err = dev.NewKernel(device.KernelDesc{
		Label:         "life",
		Size:          n,
		WorkgroupSize: WorkgroupSize,
		Invoke:        invoke,
		Source:        kageSource,
	})
	if err != nil {
		return nil, fmt.Errorf("device engine: compile kernel: %w", err)
	}
	e.log.Info("device engine ready", "backend", dev.Name(), "size", n, "workgroups", device.Groups(n, WorkgroupSize))
	return e, nil
}

// Name identifies the engine.
func (e *Engine) Name() string { return "device" }

// Size returns N.
func (e *Engine) Size() int { return e.n }

// Backend returns the device the engine runs on.
func (e *Engine) Backend() device.Backend { return e.dev }

// Generation counts completed advances since the last Upload.
func (e *Engine) Generation() uint64 { return e.gen }

// Source returns the buffer holding the current generation. The renderer
// samples it in place.
func (e *Engine) Source() device.Buffer { return e.bufs[e.read] }

// Upload replaces the current generation with cells, storing any non-zero
// value as alive. It returns after the device copy has completed and resets
// the generation counter.
func (e *Engine) Upload(cells []uint32) error {
	if len(cells) != e.n*e.n {
		return fmt.Errorf("device upload: %w: got %d, expected %d", device.ErrBufferSize, len(cells), e.n*e.n)
	}
	core.Normalize(e.stage, cells)
	if err := e.dev.Write(e.bufs[e.read], e.stage); err != nil {
		return fmt.Errorf("device upload: %w", err)
	}
	e.gen = 0
	return nil
}

// Snapshot reads the current generation back into dst. It blocks on the
// device and is meant for tests and tooling, not the frame path.
func (e *Engine) Snapshot(dst []uint32) error {
	if err := e.dev.Read(e.bufs[e.read], dst); err != nil {
		return fmt.Errorf("device snapshot: %w", err)
	}
	return nil
}

// Advance dispatches ceil(N/8)² workgroups, waits on the fence, then flips
// the read role to the buffer just written.
func (e *Engine) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	groups := device.Groups(e.n, WorkgroupSize)
	fence, err := e.dev.Dispatch(e.kernel, e.groups[e.read], groups, groups)
	if err != nil {
		return fmt.Errorf("device advance: %w", err)
	}
	fence.Wait()

	e.read = 1 - e.read
	e.gen++
	e.log.Debug("device generation complete", "generation", e.gen, "read", e.bufs[e.read].Label(), "elapsed", time.Since(start))
	return nil
}

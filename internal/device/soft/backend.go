// Package soft is a device backend that executes kernels on host memory.
// Workgroups are scheduled onto a persistent goroutine pool, so a dispatch
// behaves like a GPU submission: it returns immediately and completion is
// observed through the returned fence.
package soft

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lifeswitch/internal/device"
	"lifeswitch/internal/logging"
)

// Name is the registry name of this backend.
const Name = "soft"

func init() {
	device.Register(Name, func(opts device.Options) (device.Backend, error) {
		return New(opts), nil
	})
}

type buffer struct {
	owner *Backend
	label string
	data  []uint32
}

func (b *buffer) Label() string      { return b.label }
func (b *buffer) Len() int           { return len(b.data) }
func (b *buffer) HostData() []uint32 { return b.data }

type kernel struct {
	owner  *Backend
	desc   device.KernelDesc
	invoke device.InvokeFunc
}

func (k *kernel) Label() string      { return k.desc.Label }
func (k *kernel) WorkgroupSize() int { return k.desc.WorkgroupSize }

type fence struct {
	wg sync.WaitGroup
}

func (f *fence) Wait() { f.wg.Wait() }

// Backend runs dispatches on a worker pool.
type Backend struct {
	mu          sync.Mutex
	pool        *pool
	outstanding []*fence
	closed      bool
	log         *slog.Logger
}

// New starts a backend with opts.Workers pool goroutines.
func New(opts device.Options) *Backend {
	b := &Backend{
		pool: newPool(opts.Workers),
		log:  logging.OrDiscard(opts.Logger),
	}
	b.log.Debug("soft device ready", "workers", b.pool.workers)
	return b
}

// Name identifies the backend.
func (b *Backend) Name() string { return Name }

// Workers returns the pool size.
func (b *Backend) Workers() int { return b.pool.workers }

// NewBuffer allocates a zeroed buffer of n cells.
func (b *Backend) NewBuffer(label string, n int) (device.Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer %q: invalid length %d", label, n)
	}
	return &buffer{owner: b, label: label, data: make([]uint32, n)}, nil
}

func (b *Backend) own(buf device.Buffer) (*buffer, error) {
	sb, ok := buf.(*buffer)
	if !ok || sb.owner != b {
		return nil, fmt.Errorf("%w: buffer %q", device.ErrForeignResource, labelOf(buf))
	}
	return sb, nil
}

func labelOf(buf device.Buffer) string {
	if buf == nil {
		return "<nil>"
	}
	return buf.Label()
}

// sync waits for every dispatch submitted so far. Callers hold b.mu.
func (b *Backend) sync() {
	for _, f := range b.outstanding {
		f.Wait()
	}
	b.outstanding = b.outstanding[:0]
}

// Write uploads cells into buf after pending dispatches have finished.
func (b *Backend) Write(buf device.Buffer, cells []uint32) error {
	sb, err := b.own(buf)
	if err != nil {
		return err
	}
	if len(cells) != len(sb.data) {
		return fmt.Errorf("write %q: %w: got %d, expected %d", sb.label, device.ErrBufferSize, len(cells), len(sb.data))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()
	copy(sb.data, cells)
	return nil
}

// Read copies buf into cells after pending dispatches have finished.
func (b *Backend) Read(buf device.Buffer, cells []uint32) error {
	sb, err := b.own(buf)
	if err != nil {
		return err
	}
	if len(cells) != len(sb.data) {
		return fmt.Errorf("read %q: %w: got %d, expected %d", sb.label, device.ErrBufferSize, len(cells), len(sb.data))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()
	copy(cells, sb.data)
	return nil
}

// NewKernel validates desc; the soft backend needs its Invoke body.
func (b *Backend) NewKernel(desc device.KernelDesc) (device.Kernel, error) {
	if desc.Invoke == nil {
		return nil, fmt.Errorf("kernel %q: soft backend requires an Invoke body", desc.Label)
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("kernel %q: invalid domain size %d", desc.Label, desc.Size)
	}
	if desc.WorkgroupSize <= 0 {
		desc.WorkgroupSize = 8
	}
	return &kernel{owner: b, desc: desc, invoke: desc.Invoke}, nil
}

// Dispatch queues one task per workgroup. Invocations whose global id falls
// outside the kernel domain are discarded.
func (b *Backend) Dispatch(k device.Kernel, bg device.BindGroup, groupsX, groupsY int) (device.Fence, error) {
	kk, ok := k.(*kernel)
	if !ok || kk.owner != b {
		return nil, fmt.Errorf("%w: kernel", device.ErrForeignResource)
	}
	if err := bg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch %q: %w", kk.desc.Label, err)
	}
	src, err := b.own(bg.Read)
	if err != nil {
		return nil, err
	}
	dst, err := b.own(bg.Write)
	if err != nil {
		return nil, err
	}
	n, ws := kk.desc.Size, kk.desc.WorkgroupSize
	if len(src.data) != n*n {
		return nil, fmt.Errorf("dispatch %q: %w: buffer %d, domain %d", kk.desc.Label, device.ErrBufferSize, len(src.data), n*n)
	}
	if groupsX <= 0 || groupsY <= 0 {
		return nil, fmt.Errorf("dispatch %q: invalid workgroup count %dx%d", kk.desc.Label, groupsX, groupsY)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("soft backend is closed")
	}

	f := &fence{}
	total := groupsX * groupsY
	f.wg.Add(total)
	for gi := 0; gi < total; gi++ {
		gx, gy := gi%groupsX, gi/groupsX
		task := func() {
			defer f.wg.Done()
			runGroup(kk.invoke, src.data, dst.data, n, ws, gx, gy)
		}
		if !b.pool.submit(task) {
			f.wg.Add(-(total - gi))
			return nil, errors.New("soft backend is closed")
		}
	}
	b.outstanding = append(b.outstanding, f)
	b.log.Debug("dispatch submitted", "kernel", kk.desc.Label, "groups_x", groupsX, "groups_y", groupsY)
	return f, nil
}

func runGroup(invoke device.InvokeFunc, src, dst []uint32, n, ws, gx, gy int) {
	for ly := 0; ly < ws; ly++ {
		y := gy*ws + ly
		if y >= n {
			return
		}
		for lx := 0; lx < ws; lx++ {
			x := gx*ws + lx
			if x >= n {
				break
			}
			invoke(src, dst, n, x, y)
		}
	}
}

// Close waits for queued work and stops the pool.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.sync()
	b.pool.close()
	return nil
}

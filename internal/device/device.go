// Package device abstracts a massively parallel compute device: storage
// buffers, a compiled per-cell kernel, asynchronous dispatch over 2D
// workgroups and a fence that makes completion observable to the host.
//
// Backends register themselves by name (see Register) so the command-line
// can pick one without importing GPU code into headless builds.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	// ErrUnknownBackend is returned by Open for an unregistered name.
	ErrUnknownBackend = errors.New("unknown device backend")
	// ErrBufferSize reports a host slice whose length differs from the buffer.
	ErrBufferSize = errors.New("buffer size mismatch")
	// ErrAliasedBinding reports a bind group whose read and write buffers are the same.
	ErrAliasedBinding = errors.New("read and write bindings alias the same buffer")
	// ErrForeignResource reports a buffer or kernel created by another backend.
	ErrForeignResource = errors.New("resource belongs to a different backend")
)

// Buffer is device storage holding one uint32 per cell.
type Buffer interface {
	Label() string
	Len() int
}

// HostVisible is implemented by buffers whose storage the host can address
// directly without a blocking readback.
type HostVisible interface {
	HostData() []uint32
}

// BindGroup binds a read-only source and a write-only destination for one
// dispatch. The two must be distinct storage.
type BindGroup struct {
	Read  Buffer
	Write Buffer
}

// Validate rejects incomplete or aliased bindings.
func (b BindGroup) Validate() error {
	if b.Read == nil || b.Write == nil {
		return errors.New("bind group is missing a buffer")
	}
	if b.Read == b.Write {
		return ErrAliasedBinding
	}
	if b.Read.Len() != b.Write.Len() {
		return fmt.Errorf("%w: read %d, write %d", ErrBufferSize, b.Read.Len(), b.Write.Len())
	}
	return nil
}

// InvokeFunc is the per-invocation body of a kernel for backends that run on
// host memory. It reads src and writes dst at the invocation's own cell.
type InvokeFunc func(src, dst []uint32, n, x, y int)

// KernelDesc describes a square-domain compute kernel. Backends use the
// representation they understand: Invoke for CPU-addressable backends,
// Source (a Kage program) for shader backends.
type KernelDesc struct {
	Label         string
	Size          int
	WorkgroupSize int
	Invoke        InvokeFunc
	Source        []byte
}

// Kernel is a compiled KernelDesc.
type Kernel interface {
	Label() string
	WorkgroupSize() int
}

// Fence becomes signalled once every invocation of a dispatch has written
// its result.
type Fence interface {
	Wait()
}

// Backend is a compute device.
type Backend interface {
	Name() string
	NewBuffer(label string, n int) (Buffer, error)
	// Write uploads cells into buf and returns once the upload is complete.
	Write(buf Buffer, cells []uint32) error
	// Read copies buf into cells, blocking until pending work on buf is done.
	Read(buf Buffer, cells []uint32) error
	NewKernel(desc KernelDesc) (Kernel, error)
	// Dispatch submits groupsX×groupsY workgroups and returns immediately.
	Dispatch(k Kernel, bg BindGroup, groupsX, groupsY int) (Fence, error)
	Close() error
}

// Options configures a backend at creation time.
type Options struct {
	// Workers bounds the goroutines a CPU backend may use; <1 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Factory constructs a Backend.
type Factory func(opts Options) (Backend, error)

var (
	registryMu sync.RWMutex
	backends   = map[string]Factory{}
)

// Register adds a backend factory under the provided name.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = f
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the named backend.
func Open(name string, opts Options) (Backend, error) {
	registryMu.RLock()
	f, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownBackend, name, Backends())
	}
	b, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	return b, nil
}

// Groups returns the workgroup count needed to cover size cells with groups
// of groupSize, rounding up.
func Groups(size, groupSize int) int {
	if groupSize < 1 {
		groupSize = 1
	}
	return (size + groupSize - 1) / groupSize
}

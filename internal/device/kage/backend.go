//go:build ebiten

// Package kage runs device kernels as Kage fragment shaders on ebiten's GPU
// command queue. Each buffer is an N×N image with one texel per cell; a
// dispatch draws the read image into the write image through the kernel
// shader, so every fragment is one kernel invocation.
package kage

import (
	"errors"
	"fmt"
	"log/slog"

	"lifeswitch/internal/device"
	"lifeswitch/internal/logging"

	"github.com/hajimehoshi/ebiten/v2"
)

// Name is the registry name of this backend.
const Name = "kage"

func init() {
	device.Register(Name, func(opts device.Options) (device.Backend, error) {
		return New(opts), nil
	})
}

// Buffer is an image-backed device buffer. Image lets the renderer sample
// it without a readback.
type Buffer struct {
	owner *Backend
	label string
	n     int
	img   *ebiten.Image
	pix   []byte
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Len() int      { return b.n * b.n }

// Image exposes the texture holding the cells.
func (b *Buffer) Image() *ebiten.Image { return b.img }

type kernel struct {
	owner  *Backend
	label  string
	size   int
	ws     int
	shader *ebiten.Shader
}

func (k *kernel) Label() string      { return k.label }
func (k *kernel) WorkgroupSize() int { return k.ws }

// ebiten executes draw commands in submission order, so a later draw or
// ReadPixels always observes an earlier dispatch. Waiting is therefore a
// no-op on the host side.
type queueFence struct{}

func (queueFence) Wait() {}

// Backend allocates images and shaders.
type Backend struct {
	closed bool
	log    *slog.Logger
}

// New returns a backend. Images and shaders are created lazily by ebiten,
// so this is safe to call before ebiten.RunGame.
func New(opts device.Options) *Backend {
	return &Backend{log: logging.OrDiscard(opts.Logger)}
}

// Name identifies the backend.
func (b *Backend) Name() string { return Name }

// NewBuffer allocates a square image able to hold n cells.
func (b *Backend) NewBuffer(label string, n int) (device.Buffer, error) {
	side := 1
	for side*side < n {
		side++
	}
	if side*side != n {
		return nil, fmt.Errorf("buffer %q: %d cells is not a square grid", label, n)
	}
	img := ebiten.NewImage(side, side)
	return &Buffer{owner: b, label: label, n: side, img: img, pix: make([]byte, 4*n)}, nil
}

func (b *Backend) own(buf device.Buffer) (*Buffer, error) {
	kb, ok := buf.(*Buffer)
	if !ok || kb.owner != b {
		return nil, fmt.Errorf("%w: buffer", device.ErrForeignResource)
	}
	return kb, nil
}

// Write encodes cells as opaque white/black texels and uploads them.
func (b *Backend) Write(buf device.Buffer, cells []uint32) error {
	kb, err := b.own(buf)
	if err != nil {
		return err
	}
	if len(cells) != kb.Len() {
		return fmt.Errorf("write %q: %w: got %d, expected %d", kb.label, device.ErrBufferSize, len(cells), kb.Len())
	}
	EncodeCells(kb.pix, cells)
	kb.img.WritePixels(kb.pix)
	return nil
}

// Read downloads the image. It stalls the GPU queue and must only be called
// once the game loop is running.
func (b *Backend) Read(buf device.Buffer, cells []uint32) error {
	kb, err := b.own(buf)
	if err != nil {
		return err
	}
	if len(cells) != kb.Len() {
		return fmt.Errorf("read %q: %w: got %d, expected %d", kb.label, device.ErrBufferSize, len(cells), kb.Len())
	}
	kb.img.ReadPixels(kb.pix)
	DecodeCells(cells, kb.pix)
	return nil
}

// NewKernel compiles the Kage source of desc.
func (b *Backend) NewKernel(desc device.KernelDesc) (device.Kernel, error) {
	if len(desc.Source) == 0 {
		return nil, fmt.Errorf("kernel %q: kage backend requires shader source", desc.Label)
	}
	shader, err := ebiten.NewShader(desc.Source)
	if err != nil {
		return nil, fmt.Errorf("kernel %q: %w", desc.Label, err)
	}
	ws := desc.WorkgroupSize
	if ws <= 0 {
		ws = 8
	}
	return &kernel{owner: b, label: desc.Label, size: desc.Size, ws: ws, shader: shader}, nil
}

// Dispatch draws the whole domain in one shader pass. The rasterizer
// produces exactly one fragment per cell, so workgroup rounding never
// creates out-of-range invocations; the group counts are only checked to
// cover the domain.
func (b *Backend) Dispatch(k device.Kernel, bg device.BindGroup, groupsX, groupsY int) (device.Fence, error) {
	if b.closed {
		return nil, errors.New("kage backend is closed")
	}
	kk, ok := k.(*kernel)
	if !ok || kk.owner != b {
		return nil, fmt.Errorf("%w: kernel", device.ErrForeignResource)
	}
	if err := bg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch %q: %w", kk.label, err)
	}
	src, err := b.own(bg.Read)
	if err != nil {
		return nil, err
	}
	dst, err := b.own(bg.Write)
	if err != nil {
		return nil, err
	}
	if groupsX*kk.ws < kk.size || groupsY*kk.ws < kk.size {
		return nil, fmt.Errorf("dispatch %q: %dx%d groups do not cover %d cells", kk.label, groupsX, groupsY, kk.size)
	}

	op := &ebiten.DrawRectShaderOptions{}
	op.Blend = ebiten.BlendCopy
	op.Images[0] = src.img
	op.Uniforms = map[string]any{"GridSize": float32(kk.size)}
	dst.img.DrawRectShader(kk.size, kk.size, kk.shader, op)
	return queueFence{}, nil
}

// Close marks the backend unusable. ebiten owns the GPU resources.
func (b *Backend) Close() error {
	b.closed = true
	return nil
}

// EncodeCells converts cells into RGBA bytes: alive is opaque white, dead is
// opaque black.
func EncodeCells(pix []byte, cells []uint32) {
	for i, c := range cells {
		v := byte(0)
		if c != 0 {
			v = 0xff
		}
		base := i * 4
		pix[base+0] = v
		pix[base+1] = v
		pix[base+2] = v
		pix[base+3] = 0xff
	}
}

// DecodeCells is the inverse of EncodeCells, thresholding the red channel.
func DecodeCells(cells []uint32, pix []byte) {
	for i := range cells {
		cells[i] = 0
		if pix[i*4] >= 0x80 {
			cells[i] = 1
		}
	}
}

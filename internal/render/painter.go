//go:build ebiten

package render

import (
	_ "embed"
	"fmt"
	"image/color"

	"lifeswitch/internal/device/kage"
	"lifeswitch/internal/sim"

	"github.com/hajimehoshi/ebiten/v2"
)

//go:embed cells.kage
var cellsShaderSrc []byte

// Painter draws a frame to the screen through the palette shader. Device
// frames backed by a Kage buffer are sampled in place; host frames are first
// uploaded into the painter's own cell image.
type Painter struct {
	n      int
	pal    Palette
	shader *ebiten.Shader
	img    *ebiten.Image
	buf    []byte
}

// NewPainter compiles the palette shader for an n×n grid.
func NewPainter(n int, pal Palette) (*Painter, error) {
	shader, err := ebiten.NewShader(cellsShaderSrc)
	if err != nil {
		return nil, fmt.Errorf("compile cell shader: %w", err)
	}
	return &Painter{
		n:      n,
		pal:    pal,
		shader: shader,
		img:    ebiten.NewImage(n, n),
		buf:    make([]byte, 4*n*n),
	}, nil
}

// Draw renders f stretched over the whole of dst.
func (p *Painter) Draw(dst *ebiten.Image, f sim.Frame) error {
	src, err := p.source(f)
	if err != nil {
		return err
	}
	b := dst.Bounds()
	w, h := float32(b.Dx()), float32(b.Dy())
	n := float32(p.n)
	vs := []ebiten.Vertex{
		{DstX: 0, DstY: 0, SrcX: 0, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: w, DstY: 0, SrcX: n, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: 0, DstY: h, SrcX: 0, SrcY: n, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: w, DstY: h, SrcX: n, SrcY: n, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
	}
	is := []uint16{0, 1, 2, 1, 2, 3}
	op := &ebiten.DrawTrianglesShaderOptions{}
	op.Images[0] = src
	op.Uniforms = map[string]any{
		"AliveColor": colorUniform(p.pal.Alive),
		"DeadColor":  colorUniform(p.pal.Dead),
	}
	dst.DrawTrianglesShader(vs, is, p.shader, op)
	return nil
}

func (p *Painter) source(f sim.Frame) (*ebiten.Image, error) {
	if f.N != p.n {
		return nil, fmt.Errorf("painter: frame is %d wide, painter %d", f.N, p.n)
	}
	if kb, ok := f.Buffer.(*kage.Buffer); ok {
		return kb.Image(), nil
	}
	cells, err := FrameCells(f)
	if err != nil {
		return nil, err
	}
	kage.EncodeCells(p.buf, cells)
	p.img.WritePixels(p.buf)
	return p.img, nil
}

func colorUniform(c color.RGBA) []float32 {
	return []float32{
		float32(c.R) / 0xff,
		float32(c.G) / 0xff,
		float32(c.B) / 0xff,
		float32(c.A) / 0xff,
	}
}

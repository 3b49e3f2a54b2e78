//go:build ebiten

package render

import (
	"testing"

	"lifeswitch/internal/core"
	"lifeswitch/internal/sim"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestNewPainterCompilesCellShader(t *testing.T) {
	p, err := NewPainter(8, DefaultPalette())
	if err != nil {
		t.Fatal(err)
	}
	if got := p.img.Bounds().Dx(); got != 8 {
		t.Fatalf("painter image is %d wide, expected 8", got)
	}
}

func TestPainterRejectsForeignFrameSize(t *testing.T) {
	p, err := NewPainter(8, DefaultPalette())
	if err != nil {
		t.Fatal(err)
	}
	dst := ebiten.NewImage(8, 8)
	if err := p.Draw(dst, sim.Frame{Mode: core.ModeHost, N: 4, Cells: make([]uint32, 16)}); err == nil {
		t.Fatal("expected an error for a frame of a different size")
	}
}

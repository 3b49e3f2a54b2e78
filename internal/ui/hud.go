//go:build ebiten

package ui

import (
	"image/color"

	"lifeswitch/internal/core"
	"lifeswitch/internal/sim"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

const (
	panelPadding = 8
	lineHeight   = 15
	panelWidth   = 260
)

// HUD draws a translucent status panel in the top-left corner.
type HUD struct {
	visible bool
	pixel   *ebiten.Image
}

// NewHUD constructs a visible HUD.
func NewHUD() *HUD {
	h := &HUD{visible: true}
	h.pixel = ebiten.NewImage(1, 1)
	h.pixel.Fill(color.White)
	return h
}

// Update toggles visibility on H.
func (h *HUD) Update() {
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		h.visible = !h.visible
	}
}

// Draw paints the panel over screen.
func (h *HUD) Draw(screen *ebiten.Image, st sim.Stats, snap core.ParameterSnapshot, paused bool) {
	if !h.visible {
		return
	}
	lines := Lines(st, snap, paused)
	height := len(lines)*lineHeight + 2*panelPadding

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(panelWidth, float64(height))
	op.ColorScale.ScaleWithColor(color.RGBA{R: 16, G: 16, B: 20, A: 200})
	screen.DrawImage(h.pixel, op)

	face := basicfont.Face7x13
	y := panelPadding + lineHeight - 3
	for _, line := range lines {
		text.Draw(screen, line, face, panelPadding, y, color.RGBA{R: 220, G: 220, B: 230, A: 255})
		y += lineHeight
	}
}

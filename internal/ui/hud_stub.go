//go:build !ebiten

package ui

import (
	"lifeswitch/internal/core"
	"lifeswitch/internal/sim"
)

// HUD is a no-op placeholder for headless builds.
type HUD struct{}

// NewHUD returns nil in the headless build.
func NewHUD() *HUD { return nil }

// Update is a no-op in the headless build.
func (h *HUD) Update() {}

// Draw is a no-op in the headless build.
func (h *HUD) Draw(any, sim.Stats, core.ParameterSnapshot, bool) {}

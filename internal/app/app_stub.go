//go:build !ebiten

package app

import (
	"context"
	"errors"

	"lifeswitch/internal/config"
	"lifeswitch/internal/sim"
)

// ErrNoGUI is returned by every Game entry point in the headless build.
var ErrNoGUI = errors.New("app: GUI support requires building with the 'ebiten' tag")

// Game is a placeholder that satisfies the API expected by the GUI build.
type Game struct{}

// New reports that the ebiten build tag is required for GUI support.
func New(context.Context, *sim.Controller, config.Config) (*Game, error) {
	return nil, ErrNoGUI
}

// Reset always reports that the GUI build tag is missing.
func (g *Game) Reset(int64) error { return ErrNoGUI }

// Update always reports that the GUI build tag is missing.
func (g *Game) Update() error { return ErrNoGUI }

// Draw is a no-op placeholder to satisfy the interface shape.
func (g *Game) Draw(any) {}

// Layout returns zeros in the headless build.
func (g *Game) Layout(int, int) (int, int) { return 0, 0 }

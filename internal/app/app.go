//go:build ebiten

package app

import (
	"context"
	"log/slog"
	"time"

	"lifeswitch/internal/config"
	"lifeswitch/internal/core"
	"lifeswitch/internal/logging"
	"lifeswitch/internal/render"
	"lifeswitch/internal/sim"
	"lifeswitch/internal/ui"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// titleHz is how often the window title is refreshed.
const titleHz = 4

// Game adapts the mode controller to the ebiten.Game interface.
type Game struct {
	ctx     context.Context
	ctl     *sim.Controller
	painter *render.Painter
	hud     *ui.HUD
	title   *core.FixedStep
	log     *slog.Logger

	cfg      config.Config
	scale    int
	paused   bool
	tickOnce bool
	seed     int64
}

// New constructs a Game driving ctl with the palette and scale from cfg. The
// game logs through the logger carried by ctx.
func New(ctx context.Context, ctl *sim.Controller, cfg config.Config) (*Game, error) {
	alive, dead := cfg.Colors()
	painter, err := render.NewPainter(ctl.Size(), render.Palette{Alive: alive, Dead: dead})
	if err != nil {
		return nil, err
	}
	return &Game{
		ctx:     ctx,
		ctl:     ctl,
		painter: painter,
		hud:     ui.NewHUD(),
		title:   core.NewFixedStep(titleHz),
		log:     logging.FromContext(ctx),
		cfg:     cfg,
		scale:   cfg.Scale,
		seed:    cfg.Seed,
	}, nil
}

// Reset reinitializes the board from the configured pattern and seed.
func (g *Game) Reset(seed int64) error {
	g.seed = seed
	g.tickOnce = false
	return g.ctl.Reset(g.cfg.Pattern, seed, g.cfg.Density)
}

// Update handles input and advances the active engine by one generation.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if _, err := g.ctl.Toggle(g.ctx); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.tickOnce = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.Reset(g.seed); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if err := g.Reset(time.Now().UnixNano()); err != nil {
			return err
		}
	}

	g.hud.Update()

	if !g.paused || g.tickOnce {
		if err := g.ctl.Advance(g.ctx); err != nil {
			return err
		}
		g.tickOnce = false
	}
	if g.title.ShouldStep() {
		ebiten.SetWindowTitle(ui.Title(g.ctl.Stats()))
	}
	return nil
}

// Draw renders the current generation of the active engine.
func (g *Game) Draw(screen *ebiten.Image) {
	if err := g.painter.Draw(screen, g.ctl.Current()); err != nil {
		g.log.Error("draw failed", "err", err)
		return
	}
	g.hud.Draw(screen, g.ctl.Stats(), g.ctl.Parameters(), g.paused)
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	n := g.ctl.Size()
	return n * g.scale, n * g.scale
}

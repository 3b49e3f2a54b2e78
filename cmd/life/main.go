//go:build ebiten

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"lifeswitch/internal/app"
	"lifeswitch/internal/config"
	"lifeswitch/internal/device/kage"
	_ "lifeswitch/internal/device/soft"
	"lifeswitch/internal/logging"
	"lifeswitch/internal/ui"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:], kage.Name)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	ctx := logging.WithLogger(context.Background(), logger)

	ctl, err := app.NewController(ctx, cfg)
	if err != nil {
		log.Fatalf("initialise simulator: %v", err)
	}
	game, err := app.New(ctx, ctl, cfg)
	if err != nil {
		log.Fatalf("initialise renderer: %v", err)
	}

	ebiten.SetWindowTitle(ui.Title(ctl.Stats()))
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(cfg.GridSize*cfg.Scale, cfg.GridSize*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}

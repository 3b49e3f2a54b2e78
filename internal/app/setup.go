package app

import (
	"context"
	"fmt"

	"lifeswitch/internal/config"
	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/gpulife"
	"lifeswitch/internal/host"
	"lifeswitch/internal/logging"
	"lifeswitch/internal/sim"
)

// NewController opens the configured device backend, builds both engines
// over the initial board and wires them to a controller in the configured
// start mode. Components log through the logger carried by ctx. Any failure
// here is fatal for the caller.
func NewController(ctx context.Context, cfg config.Config) (*sim.Controller, error) {
	log := logging.FromContext(ctx)
	g := core.NewGrid(cfg.GridSize)
	if err := core.Populate(g, cfg.Pattern, cfg.Seed, cfg.Density); err != nil {
		return nil, fmt.Errorf("initial board: %w", err)
	}

	h := host.New(cfg.GridSize, cfg.Workers, host.WithLogger(log))
	if err := h.Load(g.Cells()); err != nil {
		return nil, fmt.Errorf("load host engine: %w", err)
	}

	dev, err := device.Open(cfg.Backend, device.Options{Workers: cfg.Workers, Logger: log})
	if err != nil {
		return nil, err
	}
	d, err := gpulife.New(dev, cfg.GridSize, gpulife.WithLogger(log))
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("device engine: %w", err)
	}

	ctl, err := sim.New(h, d, cfg.Mode(), sim.WithLogger(log))
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	log.Info("simulator ready",
		"n", cfg.GridSize,
		"workers", h.Workers(),
		"backend", dev.Name(),
		"mode", ctl.Mode(),
		"pattern", cfg.Pattern,
		"seed", cfg.Seed)
	return ctl, nil
}

// Package sim owns the engine selection. It advances whichever engine is
// active and applies the one-way synchronisation rule when the user toggles:
// host→device uploads the host grid, device→host transfers nothing.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/gpulife"
	"lifeswitch/internal/host"
	"lifeswitch/internal/logging"
)

// ErrGridMismatch reports engines built for different grid sizes.
var ErrGridMismatch = errors.New("engines disagree on grid size")

// Frame is the generation the renderer should draw. Exactly one of Cells
// (host mode) or Buffer (device mode) is set.
type Frame struct {
	Mode       core.Mode
	N          int
	Generation uint64
	Cells      []uint32
	Buffer     device.Buffer
}

// Stats summarises the controller state for the HUD and window title.
type Stats struct {
	Mode           core.Mode
	HostGeneration uint64
	DevGeneration  uint64
	LastAdvance    time.Duration // wall time of Advance; submission only on queue-ordered GPU backends
	Cells          int
	Transitions    int
}

// Controller drives the active engine. All methods are serialised, so a
// toggle can only take effect between two complete advances.
type Controller struct {
	mu          sync.Mutex
	mode        core.Mode
	host        *host.Engine
	dev         *gpulife.Engine
	n           int
	lastAdvance time.Duration
	transitions int
	log         *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New builds a controller over both engines. The host engine holds the
// initial generation; starting in device mode performs the host→device
// transfer before returning.
func New(h *host.Engine, d *gpulife.Engine, start core.Mode, opts ...Option) (*Controller, error) {
	if h.Size() != d.Size() {
		return nil, fmt.Errorf("%w: host %d, device %d", ErrGridMismatch, h.Size(), d.Size())
	}
	c := &Controller{mode: core.ModeHost, host: h, dev: d, n: h.Size()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDiscard(c.log)
	if start == core.ModeDevice {
		if err := c.enterDevice(); err != nil {
			return nil, err
		}
		c.mode = core.ModeDevice
	}
	return c, nil
}

// Mode returns the active mode.
func (c *Controller) Mode() core.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Size returns N.
func (c *Controller) Size() int { return c.n }

func (c *Controller) active() core.Engine {
	if c.mode == core.ModeDevice {
		return c.dev
	}
	return c.host
}

// Advance runs one generation on the active engine and returns once its
// buffers have swapped.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	if err := c.active().Advance(ctx); err != nil {
		return err
	}
	c.lastAdvance = time.Since(start)
	return nil
}

// Toggle switches engines and returns the new mode.
//
// Host→device copies the host's current generation into the device read
// buffer and completes before any device advance. Device→host copies
// nothing: the host resumes from the generation it last computed, however
// far the device has moved on since.
func (c *Controller) Toggle(ctx context.Context) (core.Mode, error) {
	if err := ctx.Err(); err != nil {
		return c.Mode(), err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.mode
	switch from {
	case core.ModeHost:
		if err := c.enterDevice(); err != nil {
			return from, err
		}
	case core.ModeDevice:
		c.log.Warn("host state is stale after device run",
			"host_generation", c.host.Generation(),
			"device_generation", c.dev.Generation())
	}
	c.mode = from.Other()
	c.transitions++
	c.log.Info("switched mode", "from", from, "to", c.mode)
	return c.mode, nil
}

// enterDevice uploads the host front buffer verbatim. Callers hold c.mu.
func (c *Controller) enterDevice() error {
	if err := c.dev.Upload(c.host.Front()); err != nil {
		return fmt.Errorf("host to device transfer: %w", err)
	}
	c.log.Debug("uploaded host generation", "host_generation", c.host.Generation(), "cells", c.n*c.n)
	return nil
}

// Current returns the active engine's generation for rendering. The frame
// is only valid until the next Advance, Toggle or Reset.
func (c *Controller) Current() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := Frame{Mode: c.mode, N: c.n, Generation: c.active().Generation()}
	if c.mode == core.ModeDevice {
		f.Buffer = c.dev.Source()
	} else {
		f.Cells = c.host.Front()
	}
	return f
}

// Reset reseeds the host grid and, in device mode, re-uploads it so both
// engines restart from the same generation.
func (c *Controller) Reset(pattern string, seed int64, density float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := core.NewGrid(c.n)
	if err := core.Populate(g, pattern, seed, density); err != nil {
		return err
	}
	if err := c.host.Load(g.Cells()); err != nil {
		return err
	}
	if c.mode == core.ModeDevice {
		if err := c.enterDevice(); err != nil {
			return err
		}
	}
	c.log.Info("reset", "pattern", pattern, "seed", seed, "mode", c.mode)
	return nil
}

// Stats returns counters for display.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Mode:           c.mode,
		HostGeneration: c.host.Generation(),
		DevGeneration:  c.dev.Generation(),
		LastAdvance:    c.lastAdvance,
		Cells:          c.n * c.n,
		Transitions:    c.transitions,
	}
}

// Parameters describes the controller for the HUD.
func (c *Controller) Parameters() core.ParameterSnapshot {
	st := c.Stats()
	return core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{
			Name: "Grid",
			Params: []core.Parameter{
				core.IntParam("n", "Size", c.n),
				core.IntParam("cells", "Cells", st.Cells),
				core.StringParam("mode", "Mode", st.Mode.String()),
			},
		},
		{
			Name: "Host",
			Params: []core.Parameter{
				core.IntParam("workers", "Workers", c.host.Workers()),
				core.Uint64Param("host_generation", "Generation", st.HostGeneration),
			},
		},
		{
			Name: "Device",
			Params: []core.Parameter{
				core.StringParam("backend", "Backend", c.dev.Backend().Name()),
				core.IntParam("workgroup", "Workgroup", gpulife.WorkgroupSize),
				core.IntParam("groups", "Groups/axis", device.Groups(c.n, gpulife.WorkgroupSize)),
				core.Uint64Param("device_generation", "Generation", st.DevGeneration),
			},
		},
	}}
}

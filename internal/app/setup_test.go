package app

import (
	"context"
	"errors"
	"testing"

	"lifeswitch/internal/config"
	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/device/soft"
	"lifeswitch/internal/logging"
	"lifeswitch/internal/render"
)

func quietContext() context.Context {
	return logging.WithLogger(context.Background(), logging.Discard())
}

func testConfig() config.Config {
	cfg := config.Default(soft.Name)
	cfg.GridSize = 16
	cfg.Workers = 2
	cfg.Pattern = "glider"
	return cfg
}

func TestNewControllerStartsInConfiguredMode(t *testing.T) {
	ctl, err := NewController(quietContext(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if ctl.Mode() != core.ModeDevice || ctl.Size() != 16 {
		t.Fatalf("controller mode %v size %d", ctl.Mode(), ctl.Size())
	}

	if err := ctl.Advance(context.Background()); err != nil {
		t.Fatal(err)
	}
	cells, err := render.FrameCells(ctl.Current())
	if err != nil {
		t.Fatal(err)
	}
	if got := core.Population(cells); got != 5 {
		t.Fatalf("glider population after one generation = %d, expected 5", got)
	}
}

func TestNewControllerHostStart(t *testing.T) {
	cfg := testConfig()
	cfg.StartMode = "host"
	ctl, err := NewController(quietContext(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if f := ctl.Current(); f.Mode != core.ModeHost || f.Cells == nil {
		t.Fatalf("expected a host frame, got %+v", f)
	}
}

func TestNewControllerFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "vulkan-but-not-really"
	if _, err := NewController(quietContext(), cfg); !errors.Is(err, device.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}

	cfg = testConfig()
	cfg.Pattern = "spaceship"
	if _, err := NewController(quietContext(), cfg); err == nil {
		t.Fatal("expected an error for an unknown pattern")
	}
}

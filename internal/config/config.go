// Package config resolves the simulator settings from defaults, an optional
// HCL file, command-line flags and key=value overrides, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"runtime"
	"strconv"
	"strings"

	"lifeswitch/internal/core"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MaxGridSize bounds N. It is the texture side limit the GPU backend can
// rely on, and keeps host allocations to a few GiB.
const MaxGridSize = 16384

// Config holds every startup setting. GridSize is fixed for the lifetime of
// the process.
type Config struct {
	GridSize  int
	Workers   int
	Backend   string
	Seed      int64
	Density   float64
	Pattern   string
	StartMode string

	Scale int
	TPS   int

	AliveColor string
	DeadColor  string

	LogLevel  string
	LogFormat string
}

// Default returns the standard configuration. backend is the device
// backend the current build prefers.
func Default(backend string) Config {
	return Config{
		GridSize:   1024,
		Workers:    runtime.GOMAXPROCS(0),
		Backend:    backend,
		Seed:       42,
		Density:    core.DefaultDensity,
		Pattern:    core.PatternRandom,
		StartMode:  core.ModeDevice.String(),
		Scale:      1,
		TPS:        60,
		AliveColor: "#ffffff",
		DeadColor:  "#1a1a4d",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.GridSize, "n", c.GridSize, "grid side length N (fixed at startup)")
	fs.IntVar(&c.Workers, "workers", c.Workers, "host engine worker count")
	fs.StringVar(&c.Backend, "backend", c.Backend, "device backend")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for the initial grid")
	fs.Float64Var(&c.Density, "density", c.Density, "share of cells alive in a random seed")
	fs.StringVar(&c.Pattern, "pattern", c.Pattern, "initial pattern: "+strings.Join(core.PatternNames(), ", "))
	fs.StringVar(&c.StartMode, "mode", c.StartMode, "starting engine: host or device")
	fs.IntVar(&c.Scale, "scale", c.Scale, "pixel scale multiplier")
	fs.IntVar(&c.TPS, "tps", c.TPS, "ticks per second")
	fs.StringVar(&c.AliveColor, "alive-color", c.AliveColor, "colour of live cells (#rrggbb)")
	fs.StringVar(&c.DeadColor, "dead-color", c.DeadColor, "colour of dead cells (#rrggbb)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
}

// Apply overrides fields from flag-style key/value pairs. Unknown keys and
// unparsable values are reported, not ignored.
func (c *Config) Apply(kv map[string]string) error {
	for key, v := range kv {
		var err error
		switch key {
		case "n", "grid_size":
			c.GridSize, err = strconv.Atoi(v)
		case "workers":
			c.Workers, err = strconv.Atoi(v)
		case "backend":
			c.Backend = v
		case "seed":
			c.Seed, err = strconv.ParseInt(v, 10, 64)
		case "density":
			c.Density, err = strconv.ParseFloat(v, 64)
		case "pattern":
			c.Pattern = v
		case "mode", "start_mode":
			c.StartMode = v
		case "scale":
			c.Scale, err = strconv.Atoi(v)
		case "tps":
			c.TPS, err = strconv.Atoi(v)
		case "alive_color":
			c.AliveColor = v
		case "dead_color":
			c.DeadColor = v
		case "log_level":
			c.LogLevel = v
		case "log_format":
			c.LogFormat = v
		default:
			return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
		}
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err)
		}
	}
	return nil
}

// FromMap returns Default(backend) with kv applied.
func FromMap(backend string, kv map[string]string) (Config, error) {
	c := Default(backend)
	err := c.Apply(kv)
	return c, err
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.GridSize < 1 || c.GridSize > MaxGridSize {
		errs = append(errs, fmt.Errorf("grid size must be within [1,%d], got %d", MaxGridSize, c.GridSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.Backend == "" {
		errs = append(errs, errors.New("backend must be set"))
	}
	if c.Density < 0 || c.Density > 1 {
		errs = append(errs, fmt.Errorf("density must be within [0,1], got %g", c.Density))
	}
	if c.Pattern != core.PatternRandom {
		if _, ok := core.LookupPattern(c.Pattern); !ok {
			errs = append(errs, fmt.Errorf("unknown pattern %q", c.Pattern))
		}
	}
	if _, err := core.ParseMode(c.StartMode); err != nil {
		errs = append(errs, err)
	}
	if c.Scale < 1 {
		errs = append(errs, fmt.Errorf("scale must be >= 1, got %d", c.Scale))
	}
	if c.TPS < 1 {
		errs = append(errs, fmt.Errorf("tps must be >= 1, got %d", c.TPS))
	}
	for _, s := range []string{c.AliveColor, c.DeadColor} {
		if _, err := ParseColor(s); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Mode returns the parsed start mode. Call Validate first.
func (c Config) Mode() core.Mode {
	m, _ := core.ParseMode(c.StartMode)
	return m
}

// Colors returns the parsed alive and dead colours. Call Validate first.
func (c Config) Colors() (alive, dead color.RGBA) {
	alive, _ = ParseColor(c.AliveColor)
	dead, _ = ParseColor(c.DeadColor)
	return alive, dead
}

// ParseColor parses an opaque #rrggbb colour.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("colour %q is not #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q is not #rrggbb", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// KV collects repeated key=value flags.
type KV map[string]string

// String implements flag.Value.
func (kv KV) String() string {
	parts := make([]string, 0, len(kv))
	for k, v := range kv {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (kv KV) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	kv[k] = v
	return nil
}

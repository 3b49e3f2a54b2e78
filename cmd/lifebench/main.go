// Command lifebench advances the host and device engines side by side from
// one seed, checks that they agree and reports how long each took.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"time"

	"lifeswitch/internal/config"
	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/device/soft"
	"lifeswitch/internal/gpulife"
	"lifeswitch/internal/host"
	"lifeswitch/internal/logging"
	"lifeswitch/internal/render"
	"lifeswitch/internal/sim"
)

// ExitError carries the process exit code for a failed run.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// report is the outcome of one benchmark run.
type report struct {
	N           int
	Generations int
	Backend     string
	Workers     int
	HostAvg     time.Duration
	DeviceAvg   time.Duration
	Population  int
	Mismatches  int
	FirstDiff   int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("lifebench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	gens := fs.Int("gens", 100, "generations to advance each engine")
	pngPath := fs.String("png", "", "write the final device generation to this PNG file")

	cfg, err := config.Parse(fs, args, soft.Name)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if *gens < 0 {
		return &ExitError{Code: 2, Message: fmt.Sprintf("gens must be >= 0, got %d", *gens)}
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	ctx = logging.WithLogger(ctx, logger)

	rep, final, err := bench(ctx, cfg, *gens)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "grid %dx%d, %d generations, %d host workers, device backend %s\n",
		rep.N, rep.N, rep.Generations, rep.Workers, rep.Backend)
	fmt.Fprintf(stdout, "host   avg %s/gen\n", rep.HostAvg)
	fmt.Fprintf(stdout, "device avg %s/gen\n", rep.DeviceAvg)
	fmt.Fprintf(stdout, "population %d\n", rep.Population)

	if *pngPath != "" {
		if err := writePNG(*pngPath, final, cfg); err != nil {
			return err
		}
		logger.Info("wrote snapshot", "path", *pngPath)
	}

	if rep.Mismatches > 0 {
		return &ExitError{Code: 1, Message: fmt.Sprintf("engines disagree on %d cells (first at index %d)", rep.Mismatches, rep.FirstDiff)}
	}
	fmt.Fprintln(stdout, "parity ok")
	return nil
}

// bench seeds both engines from cfg, advances each gens times and compares
// the results cell by cell. The returned frame holds the device generation.
func bench(ctx context.Context, cfg config.Config, gens int) (report, sim.Frame, error) {
	log := logging.FromContext(ctx)
	n := cfg.GridSize
	g := core.NewGrid(n)
	if err := core.Populate(g, cfg.Pattern, cfg.Seed, cfg.Density); err != nil {
		return report{}, sim.Frame{}, err
	}

	h := host.New(n, cfg.Workers, host.WithLogger(log))
	if err := h.Load(g.Cells()); err != nil {
		return report{}, sim.Frame{}, err
	}
	dev, err := device.Open(cfg.Backend, device.Options{Workers: cfg.Workers, Logger: log})
	if err != nil {
		return report{}, sim.Frame{}, err
	}
	defer dev.Close()
	d, err := gpulife.New(dev, n, gpulife.WithLogger(log))
	if err != nil {
		return report{}, sim.Frame{}, err
	}
	if err := d.Upload(g.Cells()); err != nil {
		return report{}, sim.Frame{}, err
	}

	hostTime, err := timeAdvance(ctx, h, gens)
	if err != nil {
		return report{}, sim.Frame{}, fmt.Errorf("host engine: %w", err)
	}
	devTime, err := timeAdvance(ctx, d, gens)
	if err != nil {
		return report{}, sim.Frame{}, fmt.Errorf("device engine: %w", err)
	}

	devCells := make([]uint32, n*n)
	if err := d.Snapshot(devCells); err != nil {
		return report{}, sim.Frame{}, err
	}
	rep := report{
		N:           n,
		Generations: gens,
		Backend:     dev.Name(),
		Workers:     h.Workers(),
		HostAvg:     average(hostTime, gens),
		DeviceAvg:   average(devTime, gens),
		Population:  core.Population(devCells),
		FirstDiff:   -1,
	}
	for i, v := range h.Front() {
		if v != devCells[i] {
			if rep.Mismatches == 0 {
				rep.FirstDiff = i
			}
			rep.Mismatches++
		}
	}
	log.Debug("bench complete", "host_generation", h.Generation(), "device_generation", d.Generation())
	return rep, sim.Frame{Mode: core.ModeDevice, N: n, Generation: d.Generation(), Cells: devCells}, nil
}

func timeAdvance(ctx context.Context, e core.Engine, gens int) (time.Duration, error) {
	start := time.Now()
	for i := 0; i < gens; i++ {
		if err := e.Advance(ctx); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}

func average(total time.Duration, gens int) time.Duration {
	if gens == 0 {
		return 0
	}
	return total / time.Duration(gens)
}

func writePNG(path string, f sim.Frame, cfg config.Config) error {
	alive, dead := cfg.Colors()
	img, err := render.RasterizeFrame(f, f.N*cfg.Scale, f.N*cfg.Scale, render.Palette{Alive: alive, Dead: dead})
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}

// Package host implements the multi-threaded CPU engine. Each generation is
// one fork/join: workers sweep disjoint slices of the back buffer while
// reading the immutable front buffer, then the buffers swap.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"lifeswitch/internal/core"
	"lifeswitch/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Engine owns a front/back buffer pair and a fixed partition of the grid.
type Engine struct {
	n     int
	bufs  [2][]uint32
	front int
	parts []Range
	gen   uint64
	log   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New allocates an n×n engine swept by the given number of workers
// (GOMAXPROCS when workers < 1). It panics if the partition does not cover
// the grid exactly once.
func New(n, workers int, opts ...Option) *Engine {
	if n <= 0 {
		n = 1
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	total := n * n
	e := &Engine{
		n:     n,
		bufs:  [2][]uint32{make([]uint32, total), make([]uint32, total)},
		parts: Partition(total, workers),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDiscard(e.log)
	if err := VerifyCoverage(e.parts, total); err != nil {
		panic(err)
	}
	return e
}

// Name identifies the engine.
func (e *Engine) Name() string { return "host" }

// Size returns N.
func (e *Engine) Size() int { return e.n }

// Workers returns the number of partitions swept per generation.
func (e *Engine) Workers() int { return len(e.parts) }

// Partitions returns a copy of the worker ranges.
func (e *Engine) Partitions() []Range { return append([]Range(nil), e.parts...) }

// Generation counts completed advances since construction or the last Load.
func (e *Engine) Generation() uint64 { return e.gen }

// Front exposes the current generation. Callers must treat it as read-only
// and must not hold it across Advance.
func (e *Engine) Front() []uint32 { return e.bufs[e.front] }

// Snapshot copies the current generation into dst.
func (e *Engine) Snapshot(dst []uint32) error {
	if len(dst) != len(e.bufs[e.front]) {
		return fmt.Errorf("host snapshot: got %d cells, expected %d", len(dst), len(e.bufs[e.front]))
	}
	copy(dst, e.bufs[e.front])
	return nil
}

// Load replaces the current generation and resets the generation counter.
// Any non-zero input value is stored as alive.
func (e *Engine) Load(cells []uint32) error {
	if len(cells) != len(e.bufs[e.front]) {
		return fmt.Errorf("host load: got %d cells, expected %d", len(cells), len(e.bufs[e.front]))
	}
	core.Normalize(e.bufs[e.front], cells)
	e.gen = 0
	return nil
}

// Advance computes the next generation into the back buffer and swaps. It
// blocks until every worker has finished; the swap happens only after the
// join. A cancelled ctx is honoured before the sweep starts, never midway.
func (e *Engine) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	src, dst := e.bufs[e.front], e.bufs[1-e.front]

	var g errgroup.Group
	g.SetLimit(len(e.parts))
	for _, p := range e.parts {
		g.Go(func() error {
			core.StepRange(src, dst, e.n, p.Lo, p.Hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("host advance: %w", err)
	}

	e.front = 1 - e.front
	e.gen++
	e.log.Debug("host generation complete", "generation", e.gen, "workers", len(e.parts), "elapsed", time.Since(start))
	return nil
}

package gpulife

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/device/soft"
	"lifeswitch/internal/host"
)

func newEngine(t *testing.T, n int) *Engine {
	t.Helper()
	dev := soft.New(device.Options{Workers: 4})
	t.Cleanup(func() { _ = dev.Close() })
	e, err := New(dev, n)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func advance(t *testing.T, eng core.Engine, gens int) {
	t.Helper()
	for i := 0; i < gens; i++ {
		if err := eng.Advance(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEngineParityWithHost(t *testing.T) {
	for _, n := range []int{1, 3, 8, 13, 64} {
		for _, gens := range []int{1, 2, 9, 40} {
			initial := make([]uint32, n*n)
			core.Seed(initial, int64(n*100+gens), 0.35)

			h := host.New(n, 3)
			if err := h.Load(initial); err != nil {
				t.Fatal(err)
			}
			d := newEngine(t, n)
			if err := d.Upload(initial); err != nil {
				t.Fatal(err)
			}

			advance(t, h, gens)
			advance(t, d, gens)

			got := make([]uint32, n*n)
			if err := d.Snapshot(got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(h.Front(), got); diff != "" {
				t.Fatalf("n=%d gens=%d: device diverged from host (-host +device):\n%s", n, gens, diff)
			}
		}
	}
}

func TestEnginePingPong(t *testing.T) {
	e := newEngine(t, 8)
	first := e.Source()
	advance(t, e, 1)
	if e.Source() == first {
		t.Fatal("read buffer must switch to the buffer just written")
	}
	advance(t, e, 1)
	if e.Source() != first {
		t.Fatal("read buffer must return after two generations")
	}
	if e.Generation() != 2 {
		t.Fatalf("generation = %d, expected 2", e.Generation())
	}
}

func TestEngineBlinkerAndBlock(t *testing.T) {
	g := core.NewGrid(12)
	blinker, _ := core.LookupPattern("blinker")
	block, _ := core.LookupPattern("block")
	blinker.Stamp(g, 3, 3)
	block.Stamp(g, 8, 8)

	e := newEngine(t, 12)
	if err := e.Upload(g.Cells()); err != nil {
		t.Fatal(err)
	}
	got := make([]uint32, 144)

	advance(t, e, 1)
	_ = e.Snapshot(got)
	if slices.Equal(got, g.Cells()) {
		t.Fatal("blinker should be horizontal after one generation")
	}
	for _, xy := range [][2]int{{8, 8}, {9, 8}, {8, 9}, {9, 9}} {
		if got[core.Index(12, xy[0], xy[1])] != core.Alive {
			t.Fatalf("block cell %v died", xy)
		}
	}

	advance(t, e, 1)
	_ = e.Snapshot(got)
	if diff := cmp.Diff(g.Cells(), got); diff != "" {
		t.Fatalf("pattern did not repeat after 2 generations:\n%s", diff)
	}
}

func TestUploadResetsGeneration(t *testing.T) {
	e := newEngine(t, 4)
	advance(t, e, 3)
	if err := e.Upload(make([]uint32, 16)); err != nil {
		t.Fatal(err)
	}
	if e.Generation() != 0 {
		t.Fatalf("generation = %d after upload", e.Generation())
	}
	if err := e.Upload(make([]uint32, 5)); !errors.Is(err, device.ErrBufferSize) {
		t.Fatalf("expected ErrBufferSize, got %v", err)
	}
}

func TestUploadStoresNonZeroAsAlive(t *testing.T) {
	const n = 6
	cells := make([]uint32, n*n)
	for _, xy := range [][2]int{{2, 2}, {3, 2}, {2, 3}, {3, 3}} {
		cells[core.Index(n, xy[0], xy[1])] = 2
	}
	e := newEngine(t, n)
	if err := e.Upload(cells); err != nil {
		t.Fatal(err)
	}
	advance(t, e, 1)

	got := make([]uint32, n*n)
	if err := e.Snapshot(got); err != nil {
		t.Fatal(err)
	}
	for _, xy := range [][2]int{{2, 2}, {3, 2}, {2, 3}, {3, 3}} {
		if v := got[core.Index(n, xy[0], xy[1])]; v != core.Alive {
			t.Fatalf("block cell (%d,%d) = %d after one generation, expected alive", xy[0], xy[1], v)
		}
	}
	if pop := core.Population(got); pop != 4 {
		t.Fatalf("population = %d, expected a stable block of 4", pop)
	}
	if cells[core.Index(n, 2, 2)] != 2 {
		t.Fatal("Upload modified the caller's slice")
	}
}

func TestKageSourceEmbedded(t *testing.T) {
	src := KageSource()
	if !bytes.Contains(src, []byte("func Fragment")) || !bytes.Contains(src, []byte("//kage:unit pixels")) {
		t.Fatal("kernel shader source missing")
	}
}

func TestNewRejectsInvalidSize(t *testing.T) {
	dev := soft.New(device.Options{Workers: 1})
	defer dev.Close()
	if _, err := New(dev, 0); err == nil {
		t.Fatal("expected error for n=0")
	}
}

//go:build ebiten

package kage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hajimehoshi/ebiten/v2"

	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/device/kage"
	"lifeswitch/internal/gpulife"
)

// Pixel reads and writes need a running game loop, so TestMain drives one
// and tests hand their GPU work to it through onGame.
var onGame = make(chan func())

type loop struct {
	done <-chan int
	code int
}

func (l *loop) Update() error {
	select {
	case f := <-onGame:
		f()
	case code := <-l.done:
		l.code = code
		return ebiten.Termination
	default:
	}
	return nil
}

func (l *loop) Draw(*ebiten.Image) {}

func (l *loop) Layout(int, int) (int, int) { return 1, 1 }

func TestMain(m *testing.M) {
	done := make(chan int, 1)
	go func() { done <- m.Run() }()

	l := &loop{done: done}
	ebiten.SetWindowSize(64, 64)
	err := ebiten.RunGameWithOptions(l, &ebiten.RunGameOptions{InitUnfocused: true})
	if err != nil && !errors.Is(err, ebiten.Termination) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(l.code)
}

// runOnGame executes f inside Update and returns its error. f must not call
// t.Fatal since it runs on the game goroutine.
func runOnGame(f func() error) error {
	errc := make(chan error, 1)
	onGame <- func() { errc <- f() }
	return <-errc
}

func TestKernelShaderCompiles(t *testing.T) {
	b := kage.New(device.Options{})
	k, err := b.NewKernel(device.KernelDesc{Label: "life", Size: 16, WorkgroupSize: gpulife.WorkgroupSize, Source: gpulife.KageSource()})
	if err != nil {
		t.Fatal(err)
	}
	if k.WorkgroupSize() != gpulife.WorkgroupSize {
		t.Fatalf("workgroup size = %d", k.WorkgroupSize())
	}

	if _, err := b.NewKernel(device.KernelDesc{Label: "empty"}); err == nil {
		t.Fatal("expected an error for a kernel without source")
	}
	if _, err := b.NewKernel(device.KernelDesc{Label: "broken", Source: []byte("package main\nfunc Fragment(")}); err == nil {
		t.Fatal("expected a compile error")
	}
}

func TestEncodeDecodeCells(t *testing.T) {
	cells := []uint32{0, 1, 2, 0, 0xffffffff, 1}
	pix := make([]byte, 4*len(cells))
	kage.EncodeCells(pix, cells)
	for i := range cells {
		if pix[4*i+3] != 0xff {
			t.Fatalf("texel %d is not opaque", i)
		}
	}

	got := make([]uint32, len(cells))
	kage.DecodeCells(got, pix)
	want := []uint32{0, 1, 1, 0, 1, 1}
	if !slices.Equal(got, want) {
		t.Fatalf("decoded %v, expected %v", got, want)
	}
}

func TestBufferRoundTrip(t *testing.T) {
	b := kage.New(device.Options{})
	buf, err := b.NewBuffer("round trip", 9*9)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.NewBuffer("ragged", 10); err == nil {
		t.Fatal("expected an error for a non-square buffer")
	}

	in := make([]uint32, 81)
	core.Seed(in, 5, 0.5)
	out := make([]uint32, 81)
	err = runOnGame(func() error {
		if err := b.Write(buf, in); err != nil {
			return err
		}
		return b.Read(buf, out)
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("readback differs (-written +read):\n%s", diff)
	}
}

func reference(cells []uint32, n, gens int) []uint32 {
	cur := slices.Clone(cells)
	nxt := make([]uint32, len(cur))
	for i := 0; i < gens; i++ {
		core.StepRange(cur, nxt, n, 0, len(cur))
		cur, nxt = nxt, cur
	}
	return cur
}

func TestShaderParityWithStepRange(t *testing.T) {
	for _, n := range []int{3, 13, 64} {
		for _, gens := range []int{1, 2, 9} {
			initial := make([]uint32, n*n)
			core.Seed(initial, int64(n*31+gens), 0.35)

			e, err := gpulife.New(kage.New(device.Options{}), n)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]uint32, n*n)
			err = runOnGame(func() error {
				if err := e.Upload(initial); err != nil {
					return err
				}
				for i := 0; i < gens; i++ {
					if err := e.Advance(context.Background()); err != nil {
						return err
					}
				}
				return e.Snapshot(got)
			})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(reference(initial, n, gens), got); diff != "" {
				t.Fatalf("n=%d gens=%d: shader diverged from the rule (-rule +shader):\n%s", n, gens, diff)
			}
		}
	}
}

func TestDispatchRejectsAliasedBinding(t *testing.T) {
	b := kage.New(device.Options{})
	buf, err := b.NewBuffer("A", 16)
	if err != nil {
		t.Fatal(err)
	}
	k, err := b.NewKernel(device.KernelDesc{Label: "life", Size: 4, WorkgroupSize: 8, Source: gpulife.KageSource()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Dispatch(k, device.BindGroup{Read: buf, Write: buf}, 1, 1); !errors.Is(err, device.ErrAliasedBinding) {
		t.Fatalf("expected ErrAliasedBinding, got %v", err)
	}
}

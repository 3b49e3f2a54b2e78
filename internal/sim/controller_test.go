package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lifeswitch/internal/core"
	"lifeswitch/internal/device"
	"lifeswitch/internal/device/soft"
	"lifeswitch/internal/gpulife"
	"lifeswitch/internal/host"
)

func newController(t *testing.T, n int, start core.Mode, seed int64) (*Controller, *host.Engine, *gpulife.Engine) {
	t.Helper()
	h := host.New(n, 4)
	initial := make([]uint32, n*n)
	core.Seed(initial, seed, core.DefaultDensity)
	require.NoError(t, h.Load(initial))

	dev := soft.New(device.Options{Workers: 4})
	t.Cleanup(func() { _ = dev.Close() })
	d, err := gpulife.New(dev, n)
	require.NoError(t, err)

	c, err := New(h, d, start)
	require.NoError(t, err)
	return c, h, d
}

func advanceN(t *testing.T, c *Controller, gens int) {
	t.Helper()
	for i := 0; i < gens; i++ {
		require.NoError(t, c.Advance(context.Background()))
	}
}

func deviceCells(t *testing.T, d *gpulife.Engine) []uint32 {
	t.Helper()
	out := make([]uint32, d.Size()*d.Size())
	require.NoError(t, d.Snapshot(out))
	return out
}

func TestHostToDeviceTransferIsLossless(t *testing.T) {
	c, h, d := newController(t, 24, core.ModeHost, 11)
	advanceN(t, c, 5)

	atSwitch := slices.Clone(h.Front())
	mode, err := c.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.ModeDevice, mode)

	if diff := cmp.Diff(atSwitch, deviceCells(t, d)); diff != "" {
		t.Fatalf("device read buffer differs from host at transition:\n%s", diff)
	}
	require.Equal(t, uint64(0), d.Generation())
}

func TestDeviceToHostKeepsStaleHostState(t *testing.T) {
	c, h, d := newController(t, 24, core.ModeHost, 12)
	// A glider never repeats a position on the torus within these generations.
	require.NoError(t, c.Reset("glider", 0, 0))
	advanceN(t, c, 3)
	beforeDevice := slices.Clone(h.Front())

	_, err := c.Toggle(context.Background())
	require.NoError(t, err)
	advanceN(t, c, 17)
	deviceState := deviceCells(t, d)

	mode, err := c.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.ModeHost, mode)

	// Staleness is the contract: the host did not follow the device.
	require.Equal(t, beforeDevice, h.Front())
	require.Equal(t, uint64(3), h.Generation())
	require.NotEqual(t, deviceState, h.Front())

	// The host resumes from its own generation 3, as if the device run never happened.
	advanceN(t, c, 1)
	ref := host.New(24, 1)
	require.NoError(t, ref.Load(beforeDevice))
	require.NoError(t, ref.Advance(context.Background()))
	require.Equal(t, ref.Front(), h.Front())
}

func TestDeviceContinuesFromTransferredState(t *testing.T) {
	c, h, d := newController(t, 16, core.ModeHost, 13)
	advanceN(t, c, 4)
	_, err := c.Toggle(context.Background())
	require.NoError(t, err)
	advanceN(t, c, 6)

	ref := host.New(16, 2)
	require.NoError(t, ref.Load(h.Front()))
	for i := 0; i < 6; i++ {
		require.NoError(t, ref.Advance(context.Background()))
	}
	require.Equal(t, ref.Front(), deviceCells(t, d))
}

func TestCurrentExposesOnlyActiveEngine(t *testing.T) {
	c, h, d := newController(t, 8, core.ModeHost, 1)
	f := c.Current()
	require.Equal(t, core.ModeHost, f.Mode)
	require.NotNil(t, f.Cells)
	require.Nil(t, f.Buffer)
	require.Equal(t, h.Front(), f.Cells)

	_, err := c.Toggle(context.Background())
	require.NoError(t, err)
	advanceN(t, c, 2)
	f = c.Current()
	require.Equal(t, core.ModeDevice, f.Mode)
	require.Nil(t, f.Cells)
	require.Same(t, d.Source(), f.Buffer)
	require.Equal(t, uint64(2), f.Generation)
}

func TestStartInDeviceModeUploadsInitialGrid(t *testing.T) {
	c, h, d := newController(t, 10, core.ModeDevice, 5)
	require.Equal(t, core.ModeDevice, c.Mode())
	require.Equal(t, h.Front(), deviceCells(t, d))
}

func TestNewRejectsMismatchedEngines(t *testing.T) {
	dev := soft.New(device.Options{Workers: 1})
	defer dev.Close()
	d, err := gpulife.New(dev, 9)
	require.NoError(t, err)
	_, err = New(host.New(8, 1), d, core.ModeHost)
	require.True(t, errors.Is(err, ErrGridMismatch))
}

func TestResetReuploadsInDeviceMode(t *testing.T) {
	c, h, d := newController(t, 12, core.ModeDevice, 2)
	advanceN(t, c, 3)
	require.NoError(t, c.Reset("glider", 0, 0))
	require.Equal(t, 5, core.Population(h.Front()))
	require.Equal(t, h.Front(), deviceCells(t, d))
	require.Error(t, c.Reset("nope", 0, 0))
}

func TestStatsAndParameters(t *testing.T) {
	c, _, _ := newController(t, 16, core.ModeHost, 3)
	advanceN(t, c, 2)
	_, _ = c.Toggle(context.Background())
	advanceN(t, c, 1)

	st := c.Stats()
	require.Equal(t, core.ModeDevice, st.Mode)
	require.Equal(t, uint64(2), st.HostGeneration)
	require.Equal(t, uint64(1), st.DevGeneration)
	require.Equal(t, 256, st.Cells)
	require.Equal(t, 1, st.Transitions)

	p, ok := c.Parameters().Lookup("groups")
	require.True(t, ok)
	require.Equal(t, "2", p.Value)
	p, ok = c.Parameters().Lookup("backend")
	require.True(t, ok)
	require.Equal(t, soft.Name, p.Value)
}

func TestToggleSerialisedWithAdvance(t *testing.T) {
	c, _, _ := newController(t, 32, core.ModeHost, 4)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = c.Advance(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 9; i++ {
			_, _ = c.Toggle(context.Background())
		}
	}()
	wg.Wait()
	require.Equal(t, core.ModeDevice, c.Mode())
	require.Equal(t, 9, c.Stats().Transitions)
}

func TestToggleLogsOneLinePerSwitch(t *testing.T) {
	const n = 8
	h := host.New(n, 2)
	dev := soft.New(device.Options{Workers: 2})
	t.Cleanup(func() { _ = dev.Close() })
	d, err := gpulife.New(dev, n)
	require.NoError(t, err)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	c, err := New(h, d, core.ModeHost, WithLogger(log))
	require.NoError(t, err)

	_, err = c.Toggle(context.Background())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, buf.String())
	require.Contains(t, lines[0], "switched mode")

	buf.Reset()
	_, err = c.Toggle(context.Background())
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "device to host logs the stale warning and the switch")
	require.Contains(t, lines[0], "level=WARN")
	require.Contains(t, lines[1], "switched mode")
}

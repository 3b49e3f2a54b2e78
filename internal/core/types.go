package core

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects which engine produces the next generation.
type Mode int

const (
	// ModeHost advances generations on the partitioned CPU sweep.
	ModeHost Mode = iota
	// ModeDevice advances generations through the device compute kernel.
	ModeDevice
)

// String returns the mode name used in logs, flags and the HUD.
func (m Mode) String() string {
	switch m {
	case ModeHost:
		return "host"
	case ModeDevice:
		return "device"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Other returns the mode a toggle switches to.
func (m Mode) Other() Mode {
	if m == ModeHost {
		return ModeDevice
	}
	return ModeHost
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "cpu":
		return ModeHost, nil
	case "device", "gpu":
		return ModeDevice, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Engine is the capability shared by the host and device engines. Advance
// blocks until the new generation is complete and the buffers have swapped.
type Engine interface {
	Name() string
	Size() int
	Advance(ctx context.Context) error
	Generation() uint64
}

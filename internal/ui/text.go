package ui

import (
	"fmt"
	"time"

	"lifeswitch/internal/core"
	"lifeswitch/internal/sim"
)

// Title formats the window title shown while running.
func Title(st sim.Stats) string {
	return fmt.Sprintf("Life | Mode: %s | Update Time: %s | %d Cells",
		modeLabel(st.Mode), updateTime(st), st.Cells)
}

// updateTime formats LastAdvance. A GPU advance returns once its commands
// are queued, so in device mode the figure is submission time and is not
// comparable with the host's full sweep.
func updateTime(st sim.Stats) string {
	d := st.LastAdvance.Round(10 * time.Microsecond).String()
	if st.Mode == core.ModeDevice {
		d += " (submit)"
	}
	return d
}

func modeLabel(m core.Mode) string {
	if m == core.ModeDevice {
		return "Device (parallel kernel)"
	}
	return "Host (worker pool)"
}

// Lines lays out the HUD text: live counters first, then the parameter
// groups, then key hints.
func Lines(st sim.Stats, snap core.ParameterSnapshot, paused bool) []string {
	lines := []string{
		"Mode: " + modeLabel(st.Mode),
		"Update: " + updateTime(st),
	}
	if st.Mode == core.ModeDevice {
		lines = append(lines, "  (GPU work completes later)")
	}
	if paused {
		lines = append(lines, "PAUSED")
	}
	for _, group := range snap.Groups {
		lines = append(lines, "", group.Name)
		for _, p := range group.Params {
			lines = append(lines, fmt.Sprintf("  %-12s %s", p.Label, p.Value))
		}
	}
	if st.Mode == core.ModeHost && st.Transitions > 0 {
		lines = append(lines, "", "host resumed from its own last generation")
	}
	return append(lines, "", "space: switch engine", "p: pause  n: step", "r: reset  s: new seed", "h: hide  q: quit")
}

package host

import (
	"errors"
	"fmt"
)

// ErrCoverage reports a partition that leaves a cell unassigned or assigns
// it twice. It indicates a logic defect, never an operational fault.
var ErrCoverage = errors.New("partition coverage violated")

// Range is a half-open span [Lo, Hi) of flat cell indices owned by one worker.
type Range struct {
	Lo, Hi int
}

// Len returns the number of cells in the range.
func (r Range) Len() int { return r.Hi - r.Lo }

// Partition splits [0, total) into contiguous ranges, one per worker. Range
// sizes differ by at most one cell. Workers beyond total are dropped so no
// range is empty.
func Partition(total, workers int) []Range {
	if total <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}
	base, rem := total/workers, total%workers
	parts := make([]Range, workers)
	lo := 0
	for i := range parts {
		size := base
		if i < rem {
			size++
		}
		parts[i] = Range{Lo: lo, Hi: lo + size}
		lo += size
	}
	return parts
}

// VerifyCoverage checks that parts cover [0, total) exactly once.
func VerifyCoverage(parts []Range, total int) error {
	hits := make([]uint8, total)
	for _, p := range parts {
		if p.Lo < 0 || p.Hi > total || p.Lo > p.Hi {
			return fmt.Errorf("%w: range [%d,%d) outside [0,%d)", ErrCoverage, p.Lo, p.Hi, total)
		}
		for i := p.Lo; i < p.Hi; i++ {
			if hits[i] != 0 {
				return fmt.Errorf("%w: cell %d assigned twice", ErrCoverage, i)
			}
			hits[i] = 1
		}
	}
	for i, h := range hits {
		if h == 0 {
			return fmt.Errorf("%w: cell %d unassigned", ErrCoverage, i)
		}
	}
	return nil
}

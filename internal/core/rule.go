package core

// Cell states as stored in every buffer, host or device.
const (
	Dead  uint32 = 0
	Alive uint32 = 1
)

// NeighborCount sums the Moore neighbourhood of (x, y) on an n×n torus.
func NeighborCount(cells []uint32, n, x, y int) uint32 {
	var count uint32
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			count += cells[Index(n, x+dx, y+dy)]
		}
	}
	return count
}

// NextState applies B3/S23: a live cell survives with two or three
// neighbours, a dead cell is born with exactly three.
func NextState(current, neighbors uint32) uint32 {
	if current == Alive {
		if neighbors == 2 || neighbors == 3 {
			return Alive
		}
		return Dead
	}
	if neighbors == 3 {
		return Alive
	}
	return Dead
}

// StepCell writes the next state of (x, y) from src into dst.
func StepCell(src, dst []uint32, n, x, y int) {
	idx := y*n + x
	dst[idx] = NextState(src[idx], NeighborCount(src, n, x, y))
}

// StepRange computes the next generation for the flat indices [lo, hi). src
// is only read and dst is only written at indices inside the range.
func StepRange(src, dst []uint32, n, lo, hi int) {
	for idx := lo; idx < hi; idx++ {
		StepCell(src, dst, n, idx%n, idx/n)
	}
}

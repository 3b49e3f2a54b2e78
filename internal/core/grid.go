package core

// Grid stores an N×N toroidal board of cell states in row-major order. A cell
// is 1 when alive and 0 when dead; the uint32 width keeps the layout identical
// to the device storage buffers.
type Grid struct {
	N    int
	data []uint32
}

// NewGrid allocates a dead grid with n cells per side.
func NewGrid(n int) *Grid {
	if n <= 0 {
		n = 1
	}
	return &Grid{N: n, data: make([]uint32, n*n)}
}

// Cells exposes the backing slice so callers can read/write values directly.
func (g *Grid) Cells() []uint32 { return g.data }

// Index returns the linear slice index for coordinates (x, y) after wrapping.
func (g *Grid) Index(x, y int) int { return Index(g.N, x, y) }

// Get reports the state of the cell at (x, y).
func (g *Grid) Get(x, y int) uint32 { return g.data[g.Index(x, y)] }

// Set stores a state for the cell at (x, y). Any non-zero value marks the cell alive.
func (g *Grid) Set(x, y int, v uint32) {
	if v != 0 {
		v = Alive
	}
	g.data[g.Index(x, y)] = v
}

// Population counts the live cells.
func (g *Grid) Population() int { return Population(g.data) }

// Clear fills the grid with dead cells.
func (g *Grid) Clear() {
	for i := range g.data {
		g.data[i] = Dead
	}
}

// Index returns the flat offset of (x, y) on an n×n torus. Both coordinates
// are taken modulo n, so negative and overflowing values are valid input.
func Index(n, x, y int) int {
	return wrap(y, n)*n + wrap(x, n)
}

func wrap(v, n int) int {
	return (v%n + n) % n
}

// Population counts the live cells in a flat buffer.
func Population(cells []uint32) int {
	total := 0
	for _, c := range cells {
		if c != Dead {
			total++
		}
	}
	return total
}

// Normalize copies src into dst with every non-zero value stored as Alive.
// Engines load through it so that all of them agree on what a live cell is.
func Normalize(dst, src []uint32) {
	for i, c := range src {
		dst[i] = Dead
		if c != Dead {
			dst[i] = Alive
		}
	}
}

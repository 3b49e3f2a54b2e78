package core

import (
	"fmt"
	"sort"
)

// Pattern is a set of live offsets relative to an anchor cell.
type Pattern struct {
	Name  string
	Cells [][2]int
}

var patterns = map[string]Pattern{
	"block":   {Name: "block", Cells: [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}},
	"blinker": {Name: "blinker", Cells: [][2]int{{0, -1}, {0, 0}, {0, 1}}},
	"glider":  {Name: "glider", Cells: [][2]int{{1, 0}, {2, 1}, {0, 2}, {1, 2}, {2, 2}}},
}

// LookupPattern returns a named pattern.
func LookupPattern(name string) (Pattern, bool) {
	p, ok := patterns[name]
	return p, ok
}

// PatternNames lists the built-in patterns plus "random", sorted.
func PatternNames() []string {
	names := []string{PatternRandom}
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PatternRandom seeds the whole board instead of stamping a shape.
const PatternRandom = "random"

// Stamp sets the pattern's cells alive around (x, y), wrapping at the edges.
func (p Pattern) Stamp(g *Grid, x, y int) {
	for _, c := range p.Cells {
		g.Set(x+c[0], y+c[1], Alive)
	}
}

// Populate initialises g for the named pattern. "random" fills the board at
// density from seed; any other name clears the board and stamps the pattern
// at the centre.
func Populate(g *Grid, name string, seed int64, density float64) error {
	if name == "" || name == PatternRandom {
		Seed(g.Cells(), seed, density)
		return nil
	}
	p, ok := LookupPattern(name)
	if !ok {
		return fmt.Errorf("unknown pattern %q", name)
	}
	g.Clear()
	p.Stamp(g, g.N/2, g.N/2)
	return nil
}

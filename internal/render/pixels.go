package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"lifeswitch/internal/device"
	"lifeswitch/internal/sim"
)

// Palette holds the two fixed output colours.
type Palette struct {
	Alive color.RGBA
	Dead  color.RGBA
}

// DefaultPalette draws live cells white on the dark blue clear colour.
func DefaultPalette() Palette {
	return Palette{
		Alive: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Dead:  color.RGBA{R: 0x1a, G: 0x1a, B: 0x4d, A: 0xff},
	}
}

// ErrNoHostCells is returned when a frame's buffer cannot be addressed from
// the host without a blocking readback.
var ErrNoHostCells = errors.New("frame is not host addressable")

// CellAt maps normalised viewport coordinates onto a cell of an n×n grid. u
// grows to the right and v grows upward, as in clip space; v is inverted so
// row 0 is the top row of the image. Coordinates are scaled into [0, n) and
// truncated.
func CellAt(u, v float64, n int) (x, y int) {
	x = clampCell(int(u*float64(n)), n)
	y = clampCell(int((1-v)*float64(n)), n)
	return x, y
}

// PixelCell maps the centre of pixel (px, py) of a w×h image with a top-left
// origin onto its cell.
func PixelCell(px, py, w, h, n int) (x, y int) {
	u := (float64(px) + 0.5) / float64(w)
	v := 1 - (float64(py)+0.5)/float64(h)
	return CellAt(u, v, n)
}

func clampCell(c, n int) int {
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// FrameCells returns host-addressable cells for f: the host buffer in host
// mode, or the device buffer's storage when the backend exposes it.
func FrameCells(f sim.Frame) ([]uint32, error) {
	if f.Cells != nil {
		return f.Cells, nil
	}
	if hv, ok := f.Buffer.(device.HostVisible); ok {
		return hv.HostData(), nil
	}
	return nil, ErrNoHostCells
}

// Rasterize draws cells into dst, one colour per pixel. Each pixel takes the
// state of the cell its centre falls in; nothing is blended across cells.
func Rasterize(dst *image.RGBA, cells []uint32, n int, pal Palette) error {
	if len(cells) != n*n {
		return fmt.Errorf("rasterize: %d cells for a %dx%d grid", len(cells), n, n)
	}
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	for py := 0; py < h; py++ {
		row := dst.Pix[py*dst.Stride:]
		for px := 0; px < w; px++ {
			x, y := PixelCell(px, py, w, h, n)
			col := pal.Dead
			if cells[y*n+x] != 0 {
				col = pal.Alive
			}
			base := px * 4
			row[base+0] = col.R
			row[base+1] = col.G
			row[base+2] = col.B
			row[base+3] = col.A
		}
	}
	return nil
}

// RasterizeFrame renders f at w×h.
func RasterizeFrame(f sim.Frame, w, h int, pal Palette) (*image.RGBA, error) {
	cells, err := FrameCells(f)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := Rasterize(img, cells, f.N, pal); err != nil {
		return nil, err
	}
	return img, nil
}

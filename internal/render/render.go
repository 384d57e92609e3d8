// Package render draws a finished (or partial) thread plan onto a raster
// canvas. It exists for host surfaces: CLI preview files and the server's
// preview endpoint. The solver itself never renders.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/fjzll/stringart/internal/art"
)

// strokeWidth is the rendered thread width in pixels.
const strokeWidth = 1.0

// Preview rasterises the sequence as antialiased chords over a white
// canvas. Each chord is stroked with alpha lineWeight/255, so overlapping
// threads accumulate darkness the way the solver models it.
func Preview(pins []art.Pin, sequence []int, size, lineWeight int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if lineWeight < 0 {
		lineWeight = 0
	} else if lineWeight > 255 {
		lineWeight = 255
	}
	src := image.NewUniform(color.NRGBA{A: uint8(lineWeight)})

	r := vector.NewRasterizer(size, size)
	for i := 1; i < len(sequence); i++ {
		a := pins[sequence[i-1]]
		b := pins[sequence[i]]
		r.Reset(size, size)
		strokeSegment(r, a, b)
		r.Draw(dst, dst.Bounds(), src, image.Point{})
	}

	return dst
}

// strokeSegment appends a quad covering the segment a->b at strokeWidth.
// Degenerate (zero-length) segments produce an empty path.
func strokeSegment(r *vector.Rasterizer, a, b art.Pin) {
	ax, ay := float64(a.X)+0.5, float64(a.Y)+0.5
	bx, by := float64(b.X)+0.5, float64(b.Y)+0.5

	dx := bx - ax
	dy := by - ay
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}

	// Unit normal scaled to half the stroke width.
	nx := -dy / length * strokeWidth / 2
	ny := dx / length * strokeWidth / 2

	r.MoveTo(float32(ax+nx), float32(ay+ny))
	r.LineTo(float32(bx+nx), float32(by+ny))
	r.LineTo(float32(bx-nx), float32(by-ny))
	r.LineTo(float32(ax-nx), float32(ay-ny))
	r.ClosePath()
}

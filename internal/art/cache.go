package art

import "math"

// MaxCacheBytes bounds the fully materialised line cache. Building a cache
// whose estimated footprint exceeds it fails with ErrResourceExhaustion
// rather than allocating.
var MaxCacheBytes = int64(1) << 31

// LineCache holds, for every admissible pin pair, the flat pixel indices
// (y*size + x) of the discretised segment between them. Both directions of
// a pair alias the same slice, so the hot loop never normalises order.
// The cache is read-only after construction.
type LineCache struct {
	NPins       int
	Size        int
	MinDistance int
	segs        [][]uint32 // indexed a*NPins+b; nil for inadmissible pairs
}

// Admissible reports whether the pair (a,b) is far enough apart on the
// ring to carry a thread.
func (lc *LineCache) Admissible(a, b int) bool {
	return RingDistance(a, b, lc.NPins) >= lc.MinDistance
}

// Segment returns the pixel indices of the chord a<->b, or nil when the
// pair is inadmissible. Callers must not mutate the returned slice.
func (lc *LineCache) Segment(a, b int) []uint32 {
	return lc.segs[a*lc.NPins+b]
}

// estimateCacheBytes approximates the materialised footprint, assuming a
// full diameter's worth of 4-byte indices per admissible pair plus slice
// headers.
func estimateCacheBytes(nPins, size, minDistance int) int64 {
	pairs := int64(nPins) * int64(nPins-2*minDistance+1) / 2
	if pairs < 0 {
		pairs = 0
	}
	return pairs*int64(size)*4 + int64(nPins)*int64(nPins)*24
}

// BuildLineCache rasterises every admissible chord between the given pins.
// Discretisation is floor-of-linspace: d = floor(euclid) samples, with x
// and y interpolated independently and floored, which the greedy scorer
// depends on pixel-for-pixel.
func BuildLineCache(pins []Pin, size, minDistance int) (*LineCache, error) {
	n := len(pins)

	if est := estimateCacheBytes(n, size, minDistance); est > MaxCacheBytes {
		return nil, ErrResourceExhaustion
	}

	lc := &LineCache{
		NPins:       n,
		Size:        size,
		MinDistance: minDistance,
		segs:        make([][]uint32, n*n),
	}

	limit := uint32(size * size)

	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if RingDistance(a, b, n) < minDistance {
				continue
			}
			seg := tracePixels(pins[a], pins[b], size, limit)
			lc.segs[a*n+b] = seg
			lc.segs[b*n+a] = seg
		}
	}

	return lc, nil
}

// tracePixels enumerates the chord's pixel indices. Floor artefacts on the
// raster boundary can land a sample outside the buffer; those are dropped
// here so the hot loop never bounds-checks.
func tracePixels(a, b Pin, size int, limit uint32) []uint32 {
	d := int(math.Floor(euclid(a, b)))
	if d < 1 {
		return []uint32{}
	}
	if d == 1 {
		k := uint32(a.Y*size + a.X)
		if k >= limit {
			return []uint32{}
		}
		return []uint32{k}
	}

	stepX := float64(b.X-a.X) / float64(d-1)
	stepY := float64(b.Y-a.Y) / float64(d-1)

	seg := make([]uint32, 0, d)
	for i := 0; i < d; i++ {
		x := int(math.Floor(float64(a.X) + stepX*float64(i)))
		y := int(math.Floor(float64(a.Y) + stepY*float64(i)))
		if x < 0 || x >= size || y < 0 || y >= size {
			continue
		}
		seg = append(seg, uint32(y*size+x))
	}
	return seg
}

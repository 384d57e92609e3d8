package art

import "math"

// Pin is an anchor point on the hoop's inscribed circle, in pixel
// coordinates of the canonical square raster.
type Pin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PlacePins computes nPins coordinates evenly spaced on the circle inscribed
// in an imgSize square. Pin 0 sits on the positive-x axis and indices
// increase counter-clockwise in image coordinates. Each angle is derived
// from the index directly, so there is no accumulated-sum drift.
func PlacePins(nPins, imgSize int) ([]Pin, error) {
	if nPins < 3 || nPins > 1000 {
		return nil, ErrInvalidPinCount
	}
	if imgSize < 100 || imgSize > 2000 {
		return nil, ErrInvalidImageSize
	}

	c := float64(imgSize) / 2
	r := c - 0.5 // half-pixel inset keeps floored coordinates inside the raster

	pins := make([]Pin, nPins)
	for i := range pins {
		angle := 2 * math.Pi * float64(i) / float64(nPins)
		pins[i] = Pin{
			X: int(math.Floor(c + r*math.Cos(angle))),
			Y: int(math.Floor(c + r*math.Sin(angle))),
		}
	}
	return pins, nil
}

// RingDistance is the shorter of the two arc distances between pin indices
// a and b on a ring of nPins.
func RingDistance(a, b, nPins int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if w := nPins - d; w < d {
		return w
	}
	return d
}

// ValidTargetPins enumerates the admissible next pins from current: ring
// offsets minDistance through nPins-minDistance-1 inclusive, skipping any
// pin present in exclude. The enumeration order (increasing offset) is what
// the solver's tie-break relies on.
func ValidTargetPins(current, minDistance, nPins int, exclude []int) []int {
	capacity := nPins - 2*minDistance
	if capacity < 0 {
		capacity = 0
	}
	targets := make([]int, 0, capacity)
	for o := minDistance; o <= nPins-minDistance-1; o++ {
		cand := (current + o) % nPins
		if containsPin(exclude, cand) {
			continue
		}
		targets = append(targets, cand)
	}
	return targets
}

func containsPin(pins []int, p int) bool {
	for _, v := range pins {
		if v == p {
			return true
		}
	}
	return false
}

func euclid(a, b Pin) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

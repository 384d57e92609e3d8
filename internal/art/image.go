package art

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Canvas is the canonicalised source image: a square 8-bit luminance buffer
// with everything outside the inscribed circle zeroed, plus the 0/1 mask
// that was applied.
type Canvas struct {
	Size int
	Lum  []uint8 // length Size*Size, row-major
	Mask []uint8 // 1 inside the inscribed circle, 0 outside
}

// CheckSourceShape applies the advisory guards on raw source dimensions.
// The canonicaliser itself works on any decodable image; these exist so
// hosts can reject inputs that would crop or upscale badly.
func CheckSourceShape(w, h int) error {
	if w < 100 || h < 100 {
		return ErrInputTooSmall
	}
	if w > 4000 || h > 4000 {
		return ErrInputTooLarge
	}
	aspect := float64(w) / float64(h)
	if aspect < 1.0/3.0 || aspect > 3.0 {
		return ErrInputAspectExtreme
	}
	return nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Canonicalize produces the size×size luminance buffer the solver consumes:
// centred square crop, bilinear scale, BT.601 luminance, circular mask.
func Canonicalize(src image.Image, size int) (*Canvas, error) {
	if size < 100 || size > 2000 {
		return nil, ErrInvalidImageSize
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	// Centre square crop with floored offsets.
	crop := b
	if w > h {
		off := (w - h) / 2
		crop = image.Rect(b.Min.X+off, b.Min.Y, b.Min.X+off+h, b.Max.Y)
	} else if h > w {
		off := (h - w) / 2
		crop = image.Rect(b.Min.X, b.Min.Y+off, b.Max.X, b.Min.Y+off+w)
	}

	cropped := src
	if crop != b {
		if si, ok := src.(subImager); ok {
			cropped = si.SubImage(crop)
		} else {
			tmp := image.NewNRGBA(crop)
			xdraw.Draw(tmp, crop, src, crop.Min, xdraw.Src)
			cropped = tmp
		}
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), cropped, cropped.Bounds(), xdraw.Src, nil)

	cv := &Canvas{
		Size: size,
		Lum:  make([]uint8, size*size),
		Mask: make([]uint8, size*size),
	}

	c := float64(size) / 2
	r2 := c * c

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			k := y*size + x
			dx := float64(x) - c
			dy := float64(y) - c
			if dx*dx+dy*dy > r2 {
				continue // outside the disc: lum and mask stay 0
			}
			cv.Mask[k] = 1
			i := scaled.PixOffset(x, y)
			r := float64(scaled.Pix[i+0])
			g := float64(scaled.Pix[i+1])
			bl := float64(scaled.Pix[i+2])
			lum := math.Floor(0.299*r + 0.587*g + 0.114*bl)
			if lum > 255 {
				lum = 255
			}
			cv.Lum[k] = uint8(lum)
		}
	}

	return cv, nil
}

// GrayImage copies the luminance buffer into a standard image for host
// surfaces that want to show what the solver saw.
func (cv *Canvas) GrayImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cv.Size, cv.Size))
	copy(img.Pix, cv.Lum)
	return img
}

// residualField initialises F: 255-lum inside the mask, 0 outside, so a
// zero residual always means "this pixel can no longer motivate a line".
func (cv *Canvas) residualField() []float32 {
	f := make([]float32, len(cv.Lum))
	for k, m := range cv.Mask {
		if m != 0 {
			f[k] = 255 - float32(cv.Lum[k])
		}
	}
	return f
}

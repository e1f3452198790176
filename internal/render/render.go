package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Doc abstracts an opened PDF for preview rendering.
type Doc interface {
	NumPage() int
	// Render rasterises page i (0-based) at scale, where 1.0 is 72 DPI.
	Render(i int, scale float64) (image.Image, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Doc, error)

func (f OpenerFunc) Open(path string) (Doc, error) { return f(path) }

// defaultOpener is provided in fitz.go using go-fitz.
var defaultOpener Opener

// Default returns the go-fitz backed opener.
func Default() Opener { return defaultOpener }

var placeholderGrey = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Placeholder returns a neutral grey image used when a page cannot be rendered.
func Placeholder(w, h int) image.Image {
	if w <= 0 {
		w = 150
	}
	if h <= 0 {
		h = 200
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderGrey}, image.Point{}, draw.Src)
	return img
}

// IsPlaceholder reports whether img is a uniform placeholder-grey image.
func IsPlaceholder(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return false
	}
	for _, pt := range []image.Point{b.Min, {b.Max.X - 1, b.Max.Y - 1}, {(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2}} {
		r, g, bl, _ := img.At(pt.X, pt.Y).RGBA()
		if r>>8 != 128 || g>>8 != 128 || bl>>8 != 128 {
			return false
		}
	}
	return true
}

// ScaleFor picks the render scale for page index i: pages at or past
// threshold use the reduced scale to bound memory on long documents.
func ScaleFor(i, threshold int, scale, largeScale float64) float64 {
	if threshold > 0 && i >= threshold && largeScale > 0 {
		return largeScale
	}
	if scale <= 0 {
		return 0.5
	}
	return scale
}

// Fit scales img down to fit within maxW x maxH, keeping the aspect ratio.
// Images already small enough are returned unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || (w <= maxW && h <= maxH) {
		return img
	}
	ratio := float64(maxW) / float64(w)
	if r := float64(maxH) / float64(h); r < ratio {
		ratio = r
	}
	nw, nh := int(float64(w)*ratio), int(float64(h)*ratio)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

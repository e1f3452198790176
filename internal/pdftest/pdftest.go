// Package pdftest builds small PDF fixtures for tests.
package pdftest

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageHeight is the image height used for page i of a fixture. Heights
// differ per page so page order can be checked through page dimensions.
func PageHeight(i int) int { return 100 + 10*i }

// MakePDF writes an n-page PDF named name into dir and returns its path.
// Each page is built from a distinct image; see PageHeight.
func MakePDF(tb testing.TB, dir, name string, n int) string {
	tb.Helper()
	imgDir := tb.TempDir()
	files := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(imgDir, fmt.Sprintf("page_%03d.png", i))
		if err := writePNG(p, 80, PageHeight(i), uint8(40+i*7)); err != nil {
			tb.Fatalf("write fixture image: %v", err)
		}
		files = append(files, p)
	}
	out := filepath.Join(dir, name)
	if err := api.ImportImagesFile(files, out, nil, model.NewDefaultConfiguration()); err != nil {
		tb.Fatalf("build fixture pdf: %v", err)
	}
	return out
}

// Heights returns the page heights of the PDF at path, in page order.
func Heights(tb testing.TB, path string) []float64 {
	tb.Helper()
	dims, err := api.PageDimsFile(path)
	if err != nil {
		tb.Fatalf("page dims %s: %v", path, err)
	}
	out := make([]float64, len(dims))
	for i, d := range dims {
		out[i] = d.Height
	}
	return out
}

// WriteCorrupt writes a file that starts like a PDF but cannot be parsed.
func WriteCorrupt(tb testing.TB, dir, name string) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\nthis is not a pdf body\n"), 0o644); err != nil {
		tb.Fatal(err)
	}
	return p
}

func writePNG(path string, w, h int, shade uint8) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: shade, G: 255 - shade, B: 128, A: 255}}, image.Point{}, draw.Src)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

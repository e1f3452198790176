package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// fitzOpener implements Opener using github.com/gen2brain/go-fitz.
type fitzOpener struct{}

func (fitzOpener) Open(path string) (Doc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return fitzDoc{doc}, nil
}

func init() {
	defaultOpener = fitzOpener{}
}

type fitzDoc struct{ *fitz.Document }

// Render draws page i without an alpha channel; go-fitz works in DPI, so
// the scale is converted against the 72 DPI user space.
func (d fitzDoc) Render(i int, scale float64) (image.Image, error) {
	if i < 0 || i >= d.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", i+1, d.NumPage())
	}
	img, err := d.Document.ImageDPI(i, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
	}
	b := img.Bounds()
	rgb := image.NewRGBA(b)
	draw.Draw(rgb, b, image.White, image.Point{}, draw.Src)
	draw.Draw(rgb, b, img, b.Min, draw.Over)

	log.Debug().
		Int("page", i+1).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Float64("scale", scale).
		Msg("rendered page preview")
	return rgb, nil
}

// blankPDF is a one-page blank document with a valid cross-reference table.
var blankPDF = func() []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 72 72] >>",
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}()

// SelfTest opens and renders a built-in one-page PDF with go-fitz.
func SelfTest() error {
	doc, err := fitz.NewFromMemory(blankPDF)
	if err != nil {
		return fmt.Errorf("failed to open test PDF: %w", err)
	}
	defer doc.Close()
	if n := doc.NumPage(); n != 1 {
		return fmt.Errorf("test PDF has %d pages", n)
	}
	if _, err := (fitzDoc{doc}).Render(0, 0.25); err != nil {
		return err
	}
	return nil
}

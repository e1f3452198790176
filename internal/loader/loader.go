// Package loader opens a PDF, counts its pages and renders one preview image
// per page.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/filetype"
	"github.com/local/pdfsplitter/internal/metrics"
	"github.com/local/pdfsplitter/internal/progress"
	"github.com/local/pdfsplitter/internal/render"
)

// ErrNoPages is returned for documents without pages.
var ErrNoPages = errors.New("document has no pages")

// LoadError reports a failed load. The previous document stays in place.
type LoadError struct {
	Ref string
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Ref, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Document is a loaded PDF. It is immutable once returned by Load.
type Document struct {
	Ref       string
	Path      string
	Name      string
	PageCount int
	Images    []image.Image
	// Placeholders lists pages whose preview could not be rendered.
	Placeholders []int
	temp         bool
}

// Image returns the preview of page i.
func (d *Document) Image(i int) (image.Image, error) {
	if i < 0 || i >= len(d.Images) {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", i, len(d.Images))
	}
	return d.Images[i], nil
}

// Close removes the local copy when the document was downloaded.
func (d *Document) Close() error {
	if d == nil || !d.temp {
		return nil
	}
	d.temp = false
	if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PageCounter returns the number of pages of a local PDF.
type PageCounter func(path string) (int, error)

// Options configures a Loader. Zero values get defaults.
type Options struct {
	RenderScale       float64
	LargeRenderScale  float64
	LargeDocThreshold int
	ProgressEvery     int
	PlaceholderWidth  int
	PlaceholderHeight int
	FetchTimeout      time.Duration
	// InputRoot limits local references to one directory tree; empty
	// allows any path. Uploads and downloads are not affected.
	InputRoot string

	Opener  render.Opener
	Counter PageCounter
}

// Loader loads documents. It holds no per-document state and can be shared.
type Loader struct {
	opts     Options
	detector *filetype.Detector
}

// New builds a Loader backed by pdfcpu for page counting and go-fitz for rendering.
func New(opts Options) *Loader {
	if opts.RenderScale <= 0 {
		opts.RenderScale = 0.5
	}
	if opts.LargeRenderScale <= 0 {
		opts.LargeRenderScale = 0.3
	}
	if opts.LargeDocThreshold <= 0 {
		opts.LargeDocThreshold = 400
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 5
	}
	if opts.PlaceholderWidth <= 0 {
		opts.PlaceholderWidth = 150
	}
	if opts.PlaceholderHeight <= 0 {
		opts.PlaceholderHeight = 200
	}
	if opts.Opener == nil {
		opts.Opener = render.Default()
	}
	if opts.Counter == nil {
		opts.Counter = api.PageCountFile
	}
	return &Loader{opts: opts, detector: filetype.New()}
}

// Load resolves ref, validates it as a PDF and renders every page. Progress
// is reported every ProgressEvery pages. Any top-level failure is returned
// as *LoadError; a page that fails to render is replaced by a placeholder.
func (l *Loader) Load(ctx context.Context, ref string, rep progress.Reporter) (*Document, error) {
	if rep == nil {
		rep = progress.Discard
	}
	start := time.Now()
	doc, err := l.load(ctx, ref, rep)
	switch {
	case err == nil:
		metrics.ObserveLoad("success", time.Since(start))
		log.Info().Str("ref", ref).Int("pages", doc.PageCount).Int("placeholders", len(doc.Placeholders)).Dur("took", time.Since(start)).Msg("document loaded")
		return doc, nil
	case errors.Is(err, context.Canceled):
		metrics.ObserveLoad("cancelled", time.Since(start))
	default:
		metrics.ObserveLoad("failed", time.Since(start))
	}
	log.Warn().Err(err).Str("ref", ref).Msg("document load failed")
	return nil, &LoadError{Ref: ref, Err: err}
}

func (l *Loader) load(ctx context.Context, ref string, rep progress.Reporter) (doc *Document, err error) {
	fctx := ctx
	if l.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, l.opts.FetchTimeout)
		defer cancel()
	}
	src, err := resolve(fctx, ref, l.opts.InputRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil && src.Temp {
			os.Remove(src.Path)
		}
	}()

	if err := l.detector.RequirePDF(src.Path); err != nil {
		return nil, err
	}
	total, err := l.opts.Counter(src.Path)
	if err != nil {
		return nil, fmt.Errorf("pdf page count failed: %w", err)
	}
	if total <= 0 {
		return nil, ErrNoPages
	}

	rd, err := l.opts.Opener.Open(src.Path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	doc = &Document{Ref: ref, Path: src.Path, Name: src.Name, PageCount: total, Images: make([]image.Image, 0, total), temp: src.Temp}
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i%l.opts.ProgressEvery == 0 {
			rep.Report(progress.Update{
				Stage:   progress.StageLoad,
				Percent: progress.Percent(i, total),
				Message: fmt.Sprintf("Loading page %d of %d...", i+1, total),
			})
		}
		scale := render.ScaleFor(i, l.opts.LargeDocThreshold, l.opts.RenderScale, l.opts.LargeRenderScale)
		img, rerr := rd.Render(i, scale)
		if rerr != nil {
			log.Warn().Err(rerr).Int("page", i+1).Str("ref", ref).Msg("page render failed; using placeholder")
			img = render.Placeholder(l.opts.PlaceholderWidth, l.opts.PlaceholderHeight)
			doc.Placeholders = append(doc.Placeholders, i)
			metrics.IncPagePlaceholder()
		} else {
			metrics.IncPageRendered()
		}
		doc.Images = append(doc.Images, img)
	}
	rep.Report(progress.Update{Stage: progress.StageLoad, Percent: 100, Message: fmt.Sprintf("Loaded %d pages", total)})
	return doc, nil
}

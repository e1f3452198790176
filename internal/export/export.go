// Package export writes one PDF per committed page range.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/metrics"
	"github.com/local/pdfsplitter/internal/progress"
	"github.com/local/pdfsplitter/internal/selection"
)

// ErrNoRanges is returned when an export is requested without ranges.
var ErrNoRanges = errors.New("no page ranges defined")

// maxCollisions bounds the counter search for a free output name.
const maxCollisions = 10000

// ExportError reports a failed export. Index is the position of the range
// being written when it failed, or -1 for failures before the first range.
type ExportError struct {
	Index int
	Path  string
	Err   error
	// Written lists the files that remain on disk.
	Written []string
}

func (e *ExportError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("export: %v", e.Err)
	}
	return fmt.Sprintf("export part %d (%s): %v", e.Index+1, filepath.Base(e.Path), e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Options configures an Exporter.
type Options struct {
	// Prefix starts every output name; defaults to "Parte".
	Prefix string
	// CleanupOnFailure removes the files of a failed run.
	CleanupOnFailure bool
}

// Exporter copies page ranges of a source PDF into separate files.
type Exporter struct {
	opts Options
}

// New returns an Exporter.
func New(opts Options) *Exporter {
	if opts.Prefix == "" {
		opts.Prefix = "Parte"
	}
	return &Exporter{opts: opts}
}

// Request describes one export run.
type Request struct {
	Ranges []selection.Range
	// Source is the local PDF to read pages from.
	Source string
	// Name is the original file name outputs are derived from; defaults
	// to the base name of Source.
	Name      string
	OutputDir string
}

// Export writes ranges in list order and returns the output paths in the
// same order. Progress is reported after each range.
func (e *Exporter) Export(ctx context.Context, req Request, rep progress.Reporter) ([]string, error) {
	if len(req.Ranges) == 0 {
		return nil, ErrNoRanges
	}
	if rep == nil {
		rep = progress.Discard
	}
	rep = progress.NewMonotonic(rep)
	if req.Name == "" {
		req.Name = filepath.Base(req.Source)
	}

	start := time.Now()
	files, err := e.export(ctx, req, rep)
	if err != nil {
		result := "failed"
		if errors.Is(err, context.Canceled) {
			result = "cancelled"
		}
		metrics.ObserveExport(result, time.Since(start))
		var xe *ExportError
		if errors.As(err, &xe) {
			if e.opts.CleanupOnFailure {
				xe.Written = removeAll(xe.Written)
			}
			log.Error().Err(xe.Err).Int("part", xe.Index+1).Strs("left_on_disk", xe.Written).Msg("export failed")
		}
		return nil, err
	}
	metrics.ObserveExport("success", time.Since(start))
	log.Info().Int("files", len(files)).Str("dir", req.OutputDir).Dur("took", time.Since(start)).Msg("export finished")
	return files, nil
}

func (e *Exporter) export(ctx context.Context, req Request, rep progress.Reporter) ([]string, error) {
	total := len(req.Ranges)
	rep.Report(progress.Update{Stage: progress.StageExport, Percent: 0, Message: "Generating PDFs..."})

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, &ExportError{Index: -1, Path: req.OutputDir, Err: err}
	}
	src, err := readSource(req.Source)
	if err != nil {
		return nil, &ExportError{Index: -1, Path: req.Source, Err: err}
	}

	written := make([]string, 0, total)
	for i, r := range req.Ranges {
		if err := ctx.Err(); err != nil {
			return nil, &ExportError{Index: i, Err: err, Written: written}
		}
		rep.Report(progress.Update{
			Stage:   progress.StageExport,
			Percent: progress.Percent(i, total),
			Message: fmt.Sprintf("Generating part %d of %d...", i+1, total),
		})
		if r.Start < 0 || r.End <= r.Start || r.End > src.PageCount {
			return nil, &ExportError{Index: i, Err: fmt.Errorf("range %v outside document of %d pages", r, src.PageCount), Written: written}
		}
		path, err := e.writeRange(src, r, i, req.Name, req.OutputDir)
		if path != "" {
			written = append(written, path)
		}
		if err != nil {
			return nil, &ExportError{Index: i, Path: path, Err: err, Written: written}
		}
		metrics.IncRangeExported()
		log.Debug().Int("part", i+1).Str("range", r.String()).Str("file", path).Msg("wrote part")
		rep.Report(progress.Update{
			Stage:   progress.StageExport,
			Percent: progress.Percent(i+1, total),
			Message: fmt.Sprintf("Generated part %d of %d", i+1, total),
		})
	}
	return written, nil
}

func readSource(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ctx, err := api.ReadContext(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	return ctx, nil
}

// writeRange extracts the pages of r into a newly created output file. The
// returned path is non-empty once the file exists on disk.
func (e *Exporter) writeRange(src *model.Context, r selection.Range, index int, name, dir string) (string, error) {
	pages := make([]int, 0, r.Len())
	for p := r.Start; p < r.End; p++ {
		pages = append(pages, p+1)
	}
	part, err := pdfcpu.ExtractPages(src, pages, false)
	if err != nil {
		return "", fmt.Errorf("extract pages: %w", err)
	}

	f, path, err := CreateUnique(dir, e.opts.Prefix, index, name)
	if err != nil {
		return "", err
	}
	if err := api.WriteContext(part, f); err != nil {
		f.Close()
		return path, fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close: %w", err)
	}
	return path, nil
}

// OutputName derives the file name of part index (0-based). counter 0 is
// the plain name; higher counters disambiguate collisions.
func OutputName(prefix string, index int, original string, counter int) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	if counter <= 0 {
		return fmt.Sprintf("%s_%d_%s%s", prefix, index+1, base, ext)
	}
	return fmt.Sprintf("%s_%d_%d_%s%s", prefix, index+1, counter, base, ext)
}

// CreateUnique creates the first free output name in dir, trying the plain
// name and then counters 1, 2, ... The file is opened with O_EXCL so an
// existing file is never overwritten.
func CreateUnique(dir, prefix string, index int, original string) (*os.File, string, error) {
	for counter := 0; counter < maxCollisions; counter++ {
		path := filepath.Join(dir, OutputName(prefix, index, original, counter))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free output name for part %d after %d attempts", index+1, maxCollisions)
}

// removeAll deletes files and returns those that could not be removed.
func removeAll(files []string) []string {
	var left []string
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			left = append(left, f)
		}
	}
	return left
}

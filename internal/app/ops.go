package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/local/pdfsplitter/internal/export"
	"github.com/local/pdfsplitter/internal/presenter"
	"github.com/local/pdfsplitter/internal/render"
	"github.com/local/pdfsplitter/internal/selection"
	"github.com/local/pdfsplitter/internal/store"
)

// DocumentInfo describes the loaded document.
type DocumentInfo struct {
	Name         string `json:"name"`
	Ref          string `json:"ref"`
	Path         string `json:"path"`
	Pages        int    `json:"pages"`
	Placeholders []int  `json:"placeholders,omitempty"`
}

// RangeInfo is one entry of the range list.
type RangeInfo struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// JobInfo identifies the running job.
type JobInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Snapshot is a copy of the application state for the surface.
type Snapshot struct {
	Document  *DocumentInfo  `json:"document,omitempty"`
	Ranges    []RangeInfo    `json:"ranges"`
	Pending   *int           `json:"pending,omitempty"`
	View      presenter.View `json:"view"`
	OutputDir string         `json:"output_dir"`
	Status    string         `json:"status"`
	Progress  float64        `json:"progress"`
	Busy      bool           `json:"busy"`
	Job       *JobInfo       `json:"job,omitempty"`
	LastJob   string         `json:"last_job,omitempty"`
	LastFiles []string       `json:"last_files,omitempty"`
	LastURLs  []string       `json:"last_urls,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// SelectPDF starts loading ref in the background and returns the job id.
// The current document and ranges stay in place until the load succeeds.
func (a *App) SelectPDF(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	var (
		id  string
		err error
	)
	derr := a.do(ctx, func(st *state) {
		if ref == "" {
			st.status = "No file selected."
			err = ErrNoFile
			return
		}
		if st.job != nil {
			err = ErrBusy
			return
		}
		st.status = "Loading PDF, please wait..."
		j, jctx := a.startJob(st, store.KindLoad)
		id = j.id
		j.log.Info().Str("ref", ref).Msg("loading pdf")
		go a.runLoad(jctx, id, ref)
	})
	if derr != nil {
		return "", derr
	}
	return id, err
}

// SetOutputDir changes where generated files are written.
func (a *App) SetOutputDir(ctx context.Context, dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return errors.New("empty output directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return a.do(ctx, func(st *state) {
		st.outputDir = abs
		st.status = fmt.Sprintf("Output folder: %s", abs)
	})
}

// ClickPage feeds a thumbnail click to the selector.
func (a *App) ClickPage(ctx context.Context, page int) (selection.ClickResult, error) {
	var (
		res selection.ClickResult
		err error
	)
	derr := a.do(ctx, func(st *state) {
		if st.doc == nil {
			err = ErrNoDocument
			return
		}
		res, err = st.sel.Click(page)
		if err != nil {
			return
		}
		if res.Pending {
			st.status = fmt.Sprintf("Page %d selected as start. Select the end page.", page+1)
			return
		}
		r := res.Committed
		st.status = fmt.Sprintf("Range added: pages %d - %d (%s).", r.Start+1, r.End, pages(r.Len()))
		st.pres.Reconcile(st.sel.IsFree)
	})
	if derr != nil {
		return res, derr
	}
	return res, err
}

// RemoveRange deletes the i-th range of the list.
func (a *App) RemoveRange(ctx context.Context, i int) error {
	var err error
	derr := a.do(ctx, func(st *state) {
		if _, _, err = st.sel.Remove(i); err != nil {
			st.status = "No range selected to remove."
			return
		}
		st.pres.Reconcile(st.sel.IsFree)
		st.status = "Range removed."
	})
	if derr != nil {
		return derr
	}
	return err
}

// ClearAll removes every range and the pending selection.
func (a *App) ClearAll(ctx context.Context) error {
	return a.do(ctx, func(st *state) {
		st.sel.Clear()
		st.pres.Reconcile(st.sel.IsFree)
		st.status = "All ranges removed."
	})
}

// Generate starts exporting the committed ranges and returns the job id.
func (a *App) Generate(ctx context.Context) (string, error) {
	var (
		id  string
		err error
	)
	derr := a.do(ctx, func(st *state) {
		switch {
		case st.job != nil:
			err = ErrBusy
			return
		case st.doc == nil:
			err = ErrNoDocument
			return
		case st.sel.Len() == 0:
			st.status = "No page ranges defined."
			err = export.ErrNoRanges
			return
		}
		st.status = "Generating PDFs..."
		j, jctx := a.startJob(st, store.KindExport)
		j.ranges = st.sel.Ranges()
		id = j.id
		req := export.Request{Ranges: j.ranges, Source: st.doc.Path, Name: st.doc.Name, OutputDir: st.outputDir}
		j.log.Info().Int("ranges", len(req.Ranges)).Str("dir", req.OutputDir).Msg("generating pdfs")
		go a.runExport(jctx, id, req)
	})
	if derr != nil {
		return "", derr
	}
	return id, err
}

// NextPage moves the thumbnail window forward.
func (a *App) NextPage(ctx context.Context) (bool, error) {
	return a.move(ctx, (*presenter.Presenter).NextPage)
}

// PrevPage moves the thumbnail window back.
func (a *App) PrevPage(ctx context.Context) (bool, error) {
	return a.move(ctx, (*presenter.Presenter).PrevPage)
}

func (a *App) move(ctx context.Context, step func(*presenter.Presenter) bool) (bool, error) {
	var moved bool
	err := a.do(ctx, func(st *state) {
		if moved = step(st.pres); moved {
			st.pres.Reconcile(st.sel.IsFree)
		}
	})
	return moved, err
}

// Scroll moves the thumbnail grid by delta rows.
func (a *App) Scroll(ctx context.Context, delta int) (int, error) {
	var pos int
	err := a.do(ctx, func(st *state) { pos = st.pres.Scroll(delta) })
	return pos, err
}

// Cancel stops the running job. The job reports its own final state.
func (a *App) Cancel(ctx context.Context) (string, error) {
	var (
		id  string
		err error
	)
	derr := a.do(ctx, func(st *state) {
		if st.job == nil {
			err = ErrNoJob
			return
		}
		id = st.job.id
		st.job.cancel()
		st.status = "Cancelling..."
		st.job.log.Info().Msg("cancel requested")
	})
	if derr != nil {
		return "", derr
	}
	return id, err
}

// Snapshot returns a copy of the current state.
func (a *App) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := a.do(ctx, func(st *state) {
		pending := -1
		if p, ok := st.sel.Pending(); ok {
			pending = p
			snap.Pending = &p
		}
		if st.doc != nil {
			snap.Document = &DocumentInfo{
				Name:         st.doc.Name,
				Ref:          st.doc.Ref,
				Path:         st.doc.Path,
				Pages:        st.doc.PageCount,
				Placeholders: append([]int(nil), st.doc.Placeholders...),
			}
		}
		ranges := st.sel.Ranges()
		snap.Ranges = make([]RangeInfo, len(ranges))
		for i, r := range ranges {
			snap.Ranges[i] = RangeInfo{Index: i, Start: r.Start, End: r.End, Label: r.Label(i + 1)}
		}
		snap.View = st.pres.View(pending)
		snap.OutputDir = st.outputDir
		snap.Status = st.status
		snap.Progress = st.progress
		if st.job != nil {
			snap.Busy = true
			snap.Job = &JobInfo{ID: st.job.id, Kind: st.job.kind}
		}
		snap.LastJob = st.lastJob
		snap.LastFiles = append([]string(nil), st.lastFiles...)
		snap.LastURLs = append([]string(nil), st.lastURLs...)
		snap.LastError = st.lastErr
	})
	return snap, err
}

// Thumbnail returns the PNG thumbnail of page. Scaling and encoding run on
// the caller's goroutine; document images are never mutated.
func (a *App) Thumbnail(ctx context.Context, page int) ([]byte, error) {
	img, err := a.image(ctx, page)
	if err != nil {
		return nil, err
	}
	return render.EncodePNG(render.Fit(img, a.opts.ThumbWidth, a.opts.ThumbHeight))
}

func pages(n int) string {
	if n == 1 {
		return "1 page"
	}
	return fmt.Sprintf("%d pages", n)
}

// Job returns the status record of a job.
func (a *App) Job(ctx context.Context, id string) (store.Status, bool, error) {
	return a.opts.Status.Get(ctx, id)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/export"
	"github.com/local/pdfsplitter/internal/loader"
	"github.com/local/pdfsplitter/internal/logger"
	"github.com/local/pdfsplitter/internal/presenter"
	"github.com/local/pdfsplitter/internal/progress"
	"github.com/local/pdfsplitter/internal/selection"
	"github.com/local/pdfsplitter/internal/store"
)

// message is sent by a worker to the loop. Exactly one of update and
// result is set.
type message struct {
	job    string
	update *progress.Update
	result *result
}

type result struct {
	doc   *loader.Document
	files []string
	urls  []string
	// pubErr is a failed publication; the export itself succeeded.
	pubErr error
	err    error
}

func (a *App) startJob(st *state, kind string) (*job, context.Context) {
	ctx, cancel := context.WithCancel(a.base)
	id := uuid.NewString()
	j := &job{id: id, kind: kind, start: time.Now(), cancel: cancel, log: logger.ForJob(id, kind)}
	st.job = j
	st.lastJob = j.id
	st.progress = 0
	a.saveStatus(j, store.StateRunning, 0, st.status, nil)
	return j, ctx
}

func (a *App) reporter(ctx context.Context, id string) progress.Reporter {
	return progress.Chan(ctx, a.msgs, func(u progress.Update) message {
		return message{job: id, update: &u}
	})
}

// finish delivers the final result. It is never dropped while the loop
// runs; if the loop is gone a loaded document is closed here.
func (a *App) finish(id string, r *result) {
	select {
	case a.msgs <- message{job: id, result: r}:
	case <-a.done:
		if r.doc != nil {
			r.doc.Close()
		}
	}
}

func (a *App) runLoad(ctx context.Context, id, ref string) {
	doc, err := a.opts.Loader.Load(ctx, ref, a.reporter(ctx, id))
	a.finish(id, &result{doc: doc, err: err})
}

func (a *App) runExport(ctx context.Context, id string, req export.Request) {
	files, err := a.opts.Exporter.Export(ctx, req, a.reporter(ctx, id))
	r := &result{files: files, err: err}
	if err == nil && a.opts.Publisher != nil {
		r.urls, r.pubErr = a.opts.Publisher.Publish(ctx, id, files)
	}
	a.finish(id, r)
}

func (a *App) apply(st *state, m message) {
	if st.job == nil || st.job.id != m.job {
		log.Debug().Str("job_id", m.job).Msg("dropping message from finished job")
		return
	}
	if m.update != nil {
		st.progress = m.update.Percent
		st.status = m.update.Message
		a.saveStatus(st.job, store.StateRunning, m.update.Percent, m.update.Message, nil)
		return
	}
	j := st.job
	st.job = nil
	j.cancel()
	switch j.kind {
	case store.KindLoad:
		a.loaded(st, j, m.result)
	case store.KindExport:
		a.exported(st, j, m.result)
	}
}

func (a *App) loaded(st *state, j *job, r *result) {
	if r.err != nil {
		final := store.StateFailed
		if errors.Is(r.err, context.Canceled) {
			final = store.StateCancelled
			st.status = "PDF loading cancelled."
		} else {
			st.status = fmt.Sprintf("Error: %v", r.err)
		}
		st.progress = 0
		st.lastErr = r.err.Error()
		j.log.Warn().Err(r.err).Str("state", final).Msg("load finished without a document")
		a.saveStatus(j, final, 0, st.status, map[string]interface{}{"error": r.err.Error()})
		return
	}

	if err := st.doc.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to remove previous downloaded pdf")
	}
	doc := r.doc
	st.doc = doc
	st.sel = selection.New(doc.PageCount)
	st.pres = presenter.New(doc.PageCount, a.opts.PageWindow)
	st.pres.Reconcile(st.sel.IsFree)
	st.lastFiles, st.lastURLs, st.lastErr = nil, nil, ""
	st.progress = 100
	st.status = fmt.Sprintf("PDF loaded: %s (%d pages)", doc.Name, doc.PageCount)
	a.saveStatus(j, store.StateSuccess, 100, st.status, map[string]interface{}{
		"name":         doc.Name,
		"pages":        doc.PageCount,
		"placeholders": doc.Placeholders,
	})
	j.log.Info().Str("name", doc.Name).Int("pages", doc.PageCount).Msg("document ready")
}

func (a *App) exported(st *state, j *job, r *result) {
	meta := map[string]interface{}{"ranges": j.ranges}
	if r.err != nil {
		final := store.StateFailed
		if errors.Is(r.err, context.Canceled) {
			final = store.StateCancelled
			st.status = "PDF generation cancelled."
		} else {
			st.status = "Error generating PDFs."
		}
		st.lastErr = r.err.Error()
		meta["error"] = r.err.Error()
		var xe *export.ExportError
		if errors.As(r.err, &xe) && len(xe.Written) > 0 {
			meta["left_on_disk"] = xe.Written
		}
		a.saveStatus(j, final, st.progress, st.status, meta)
		return
	}

	names := make([]string, len(r.files))
	for i, f := range r.files {
		names[i] = filepath.Base(f)
	}
	st.lastFiles, st.lastURLs, st.lastErr = names, r.urls, ""
	st.progress = 100
	st.status = fmt.Sprintf("%d PDFs generated successfully.", len(r.files))
	meta["files"] = r.files
	meta["output_dir"] = st.outputDir
	if len(r.urls) > 0 {
		meta["urls"] = r.urls
	}
	if r.pubErr != nil {
		meta["publish_error"] = r.pubErr.Error()
		j.log.Error().Err(r.pubErr).Msg("publishing generated pdfs failed")
	}
	a.saveStatus(j, store.StateSuccess, 100, st.status, meta)
}

func (a *App) saveStatus(j *job, state string, pct float64, msg string, meta map[string]interface{}) {
	rec := store.Status{
		Kind:     j.kind,
		Status:   state,
		Progress: int(pct),
		Message:  msg,
		Start:    &j.start,
		Metadata: meta,
	}
	if rec.Done() {
		end := time.Now()
		rec.End = &end
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.opts.Status.Set(ctx, j.id, rec); err != nil {
		j.log.Warn().Err(err).Msg("failed to save job status")
	}
}

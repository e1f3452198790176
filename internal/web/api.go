package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/app"
	"github.com/local/pdfsplitter/internal/export"
	"github.com/local/pdfsplitter/internal/loader"
	"github.com/local/pdfsplitter/internal/selection"
)

const (
	maxBody   = 64 << 10
	maxUpload = 64 << 20
)

type jobResponse struct {
	JobID string       `json:"job_id"`
	State app.Snapshot `json:"state"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps application errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrNoDocument), errors.Is(err, app.ErrNoJob):
		code = http.StatusConflict
	case errors.Is(err, export.ErrNoRanges), errors.Is(err, selection.ErrNoRangeSelected):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, selection.ErrPageOutOfRange), errors.Is(err, app.ErrNoFile):
		code = http.StatusBadRequest
	case errors.Is(err, app.ErrNotRunning):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (w *Web) decode(wr http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(wr, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	if err := w.validate.check(dst); err != nil {
		writeJSON(wr, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fieldErrors(err)})
		return false
	}
	return true
}

// state writes the current snapshot with code.
func (w *Web) state(wr http.ResponseWriter, r *http.Request, code int) {
	snap, err := w.app.Snapshot(r.Context())
	if err != nil {
		writeError(wr, err)
		return
	}
	writeJSON(wr, code, snap)
}

func (w *Web) job(wr http.ResponseWriter, r *http.Request, id string) {
	snap, err := w.app.Snapshot(r.Context())
	if err != nil {
		writeError(wr, err)
		return
	}
	writeJSON(wr, http.StatusAccepted, jobResponse{JobID: id, State: snap})
}

func (w *Web) handleState(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
	if w.checker == nil {
		writeJSON(wr, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(wr, http.StatusOK, w.checker.Summary(r.Context()))
}

func (w *Web) handleDocument(wr http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !w.decode(wr, r, &req) {
		return
	}
	id, err := w.app.SelectPDF(r.Context(), req.Ref)
	if err != nil {
		writeError(wr, err)
		return
	}
	w.job(wr, r, id)
}

// handleUpload stores a multipart "file" part as an owned temp file and
// starts loading it.
func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(wr, r.Body, maxUpload)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(wr, http.StatusBadRequest, map[string]any{"error": "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(wr, http.StatusBadRequest, map[string]any{"error": "missing file", "fields": map[string]string{"file": "file is required"}})
		return
	}
	defer file.Close()

	dst, err := loader.CreateUpload(hdr.Filename)
	if err != nil {
		writeError(wr, err)
		return
	}
	_, err = io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst.Name())
		writeError(wr, err)
		return
	}
	log.Info().Str("file", hdr.Filename).Int64("size", hdr.Size).Msg("pdf uploaded")

	id, err := w.app.SelectPDF(r.Context(), dst.Name())
	if err != nil {
		os.Remove(dst.Name())
		writeError(wr, err)
		return
	}
	w.job(wr, r, id)
}

func (w *Web) handleOutputDir(wr http.ResponseWriter, r *http.Request) {
	var req outputDirRequest
	if !w.decode(wr, r, &req) {
		return
	}
	if err := w.app.SetOutputDir(r.Context(), req.Dir); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleClick(wr http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !w.decode(wr, r, &req) {
		return
	}
	if _, err := w.app.ClickPage(r.Context(), *req.Page); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleRemove(wr http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if !w.decode(wr, r, &req) {
		return
	}
	if err := w.app.RemoveRange(r.Context(), *req.Index); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleClear(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := w.app.ClearAll(r.Context()); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleGenerate(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := w.app.Generate(r.Context())
	if err != nil {
		writeError(wr, err)
		return
	}
	w.job(wr, r, id)
}

func (w *Web) handleNext(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := w.app.NextPage(r.Context()); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handlePrev(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := w.app.PrevPage(r.Context()); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleScroll(wr http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if !w.decode(wr, r, &req) {
		return
	}
	if _, err := w.app.Scroll(r.Context(), req.Delta); err != nil {
		writeError(wr, err)
		return
	}
	w.state(wr, r, http.StatusOK)
}

func (w *Web) handleCancel(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := w.app.Cancel(r.Context())
	if err != nil {
		writeError(wr, err)
		return
	}
	w.job(wr, r, id)
}

func (w *Web) handleJob(wr http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(wr, "not found", http.StatusNotFound)
		return
	}
	st, ok, err := w.app.Job(r.Context(), id)
	if err != nil {
		writeError(wr, err)
		return
	}
	if !ok {
		http.Error(wr, "not found", http.StatusNotFound)
		return
	}
	writeJSON(wr, http.StatusOK, st)
}

func (w *Web) handleThumb(wr http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/thumbs/"))
	if err != nil || page < 0 {
		http.Error(wr, "invalid page", http.StatusBadRequest)
		return
	}
	b, err := w.app.Thumbnail(r.Context(), page)
	if err != nil {
		if errors.Is(err, app.ErrNotRunning) {
			writeError(wr, err)
			return
		}
		http.Error(wr, "not found", http.StatusNotFound)
		return
	}
	wr.Header().Set("Content-Type", "image/png")
	wr.Header().Set("Cache-Control", "no-store")
	_, _ = wr.Write(b)
}

// Package app holds the application state and the single event loop that
// mutates it. Every operation is executed on the loop goroutine; background
// loads and exports report back through one ordered message channel.
package app

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/export"
	"github.com/local/pdfsplitter/internal/loader"
	"github.com/local/pdfsplitter/internal/presenter"
	"github.com/local/pdfsplitter/internal/progress"
	"github.com/local/pdfsplitter/internal/selection"
	"github.com/local/pdfsplitter/internal/store"
)

var (
	// ErrBusy is returned while a load or export is running.
	ErrBusy = errors.New("another job is running")
	// ErrNoDocument is returned for operations that need a loaded PDF.
	ErrNoDocument = errors.New("no PDF loaded")
	// ErrNotRunning is returned once the event loop has stopped.
	ErrNotRunning = errors.New("application loop not running")
	// ErrNoFile is returned by SelectPDF for an empty reference.
	ErrNoFile = errors.New("no file selected")
	// ErrNoJob is returned by Cancel when nothing is running.
	ErrNoJob = errors.New("no job running")
)

// Loader loads a PDF reference into a Document.
type Loader interface {
	Load(ctx context.Context, ref string, rep progress.Reporter) (*loader.Document, error)
}

// Exporter writes ranges of a PDF to separate files.
type Exporter interface {
	Export(ctx context.Context, req export.Request, rep progress.Reporter) ([]string, error)
}

// Publisher uploads generated files and returns their URLs.
type Publisher interface {
	Publish(ctx context.Context, jobID string, files []string) ([]string, error)
}

// Options configures an App.
type Options struct {
	OutputDir   string
	PageWindow  int
	ThumbWidth  int
	ThumbHeight int

	Loader    Loader
	Exporter  Exporter
	Publisher Publisher
	Status    store.StatusStore
}

type job struct {
	id     string
	kind   string
	start  time.Time
	cancel context.CancelFunc
	log    zerolog.Logger
	// ranges being exported, kept for the status record
	ranges []selection.Range
}

// state is owned by the loop goroutine.
type state struct {
	doc       *loader.Document
	sel       *selection.Selector
	pres      *presenter.Presenter
	outputDir string
	status    string
	progress  float64
	job       *job
	lastJob   string
	lastFiles []string
	lastURLs  []string
	lastErr   string
}

// App is the splitter application.
type App struct {
	opts  Options
	cmds  chan func(*state)
	msgs  chan message
	done  chan struct{}
	ready chan struct{}
	// base is the context jobs derive from; set by Run.
	base context.Context
}

// New returns an App. Run must be started before any operation is used.
func New(opts Options) *App {
	if opts.PageWindow <= 0 {
		opts.PageWindow = 30
	}
	if opts.ThumbWidth <= 0 {
		opts.ThumbWidth = 150
	}
	if opts.ThumbHeight <= 0 {
		opts.ThumbHeight = 200
	}
	if opts.Status == nil {
		opts.Status = store.NewMemory(0)
	}
	return &App{
		opts:  opts,
		cmds:  make(chan func(*state)),
		msgs:  make(chan message),
		done:  make(chan struct{}),
		ready: make(chan struct{}),
	}
}

// Run executes the event loop until ctx is done. A running job is
// cancelled and the current document closed on exit.
func (a *App) Run(ctx context.Context) {
	st := &state{
		sel:       selection.New(0),
		pres:      presenter.New(0, a.opts.PageWindow),
		outputDir: a.opts.OutputDir,
		status:    "Ready. Select a PDF file to begin.",
	}
	a.base = ctx
	close(a.ready)
	log.Info().Str("output_dir", st.outputDir).Msg("application loop started")

	defer func() {
		close(a.done)
		if st.job != nil {
			st.job.cancel()
		}
		if err := st.doc.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to remove downloaded pdf")
		}
		log.Info().Msg("application loop stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-a.cmds:
			fn(st)
		case m := <-a.msgs:
			a.apply(st, m)
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (a *App) do(ctx context.Context, fn func(*state)) error {
	select {
	case <-a.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	finished := make(chan struct{})
	cmd := func(st *state) {
		defer close(finished)
		fn(st)
	}
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	// once accepted the command runs to completion on the loop
	<-finished
	return nil
}

// image returns the preview of page from the current document.
func (a *App) image(ctx context.Context, page int) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	if derr := a.do(ctx, func(st *state) {
		if st.doc == nil {
			err = ErrNoDocument
			return
		}
		img, err = st.doc.Image(page)
	}); derr != nil {
		return nil, derr
	}
	return img, err
}

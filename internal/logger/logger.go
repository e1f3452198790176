package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	service    = "pdfsplitter"
	axiomBatch = 200
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console overrides stdout; tests point it at a buffer.
	Console io.Writer

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var closers []io.Closer

// Init sets up the global logger: rotated file, console, optional Axiom forwarding.
func Init(opts Options) error {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{console}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		w, err := newAxiomWriter(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			// diode keeps a slow ingest from blocking callers; overflow is dropped.
			dw := diode.NewWriter(w, 1000, 10*time.Millisecond, nil)
			writers = append(writers, dw)
			closers = append(closers, dw)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Str("service", service).Logger()
	return nil
}

// Close flushes buffered sinks.
func Close() {
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

// ForJob returns a child logger tagged with a splitter job.
func ForJob(id, kind string) zerolog.Logger {
	return log.With().Str("job_id", id).Str("kind", kind).Logger()
}

// axiomWriter batches zerolog lines into Axiom events, skipping debug.
// Batches go out when full or when a write arrives after the flush interval.
type axiomWriter struct {
	client  *axiom.Client
	dataset string
	every   time.Duration

	mu    sync.Mutex
	batch []axiom.Event
	last  time.Time
}

func newAxiomWriter(opts Options) (*axiomWriter, error) {
	copts := []axiom.Option{axiom.SetToken(opts.AxiomAPIKey)}
	if opts.AxiomOrgID != "" {
		copts = append(copts, axiom.SetOrganizationID(opts.AxiomOrgID))
	}
	c, err := axiom.NewClient(copts...)
	if err != nil {
		return nil, err
	}
	w := &axiomWriter{client: c, dataset: opts.AxiomDataset, every: opts.AxiomFlush, last: time.Now()}
	if w.dataset == "" {
		w.dataset = "dev_" + service
	}
	if w.every <= 0 {
		w.every = 10 * time.Second
	}
	return w, nil
}

func (w *axiomWriter) Write(p []byte) (int, error) {
	ev := decodeEvent(p)
	if ev["level"] == "debug" {
		return len(p), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batch = append(w.batch, axiom.Event(ev))
	if len(w.batch) >= axiomBatch || time.Since(w.last) >= w.every {
		w.flush()
	}
	return len(p), nil
}

func (w *axiomWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flush()
	return nil
}

// flush must be called with mu held.
func (w *axiomWriter) flush() {
	w.last = time.Now()
	if len(w.batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, _ = w.client.IngestEvents(ctx, w.dataset, w.batch)
	w.batch = w.batch[:0]
}

func decodeEvent(p []byte) map[string]interface{} {
	var ev map[string]interface{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]interface{}{"message": string(p), "level": "info"}
	}
	if _, ok := ev["service"]; !ok {
		ev["service"] = service
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return ev
}

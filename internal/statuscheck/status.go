package statuscheck

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/local/pdfsplitter/internal/render"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker reports whether the publication bucket is reachable.
type BucketChecker interface {
	HeadBucket(ctx context.Context) error
	Bucket() string
}

// Checker aggregates health checks for the dependencies shown on the dashboard.
type Checker struct {
	redis     RedisPinger
	bucket    BucketChecker
	renderer  func() error
	outputDir func() string
}

// Options configures the Checker. Nil dependencies are reported as not configured.
type Options struct {
	Redis  RedisPinger
	Bucket BucketChecker
	// Renderer opens and renders a test document; defaults to render.SelfTest.
	Renderer func() error
	// OutputDir returns the current output directory.
	OutputDir func() string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the dashboard.
type Summary struct {
	Redis     Status `json:"redis"`
	S3        Status `json:"s3"`
	MuPDF     Status `json:"mupdf"`
	OutputDir Status `json:"output_dir"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	if opts.Renderer == nil {
		opts.Renderer = render.SelfTest
	}
	return &Checker{redis: opts.Redis, bucket: opts.Bucket, renderer: opts.Renderer, outputDir: opts.OutputDir}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:     c.checkRedis(ctx),
		S3:        c.checkS3(ctx),
		MuPDF:     c.checkMuPDF(),
		OutputDir: c.checkOutputDir(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "Not configured (in-memory job status)"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.bucket == nil {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.bucket.HeadBucket(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected: " + c.bucket.Bucket()}
}

func (c *Checker) checkMuPDF() Status {
	if err := c.renderer(); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Available (go-fitz)"}
}

func (c *Checker) checkOutputDir() Status {
	if c.outputDir == nil {
		return Status{OK: false, Message: "Not configured"}
	}
	dir := c.outputDir()
	if dir == "" {
		return Status{OK: false, Message: "Not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	f, err := os.CreateTemp(dir, ".pdfsplit-write-*")
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	f.Close()
	os.Remove(f.Name())
	return Status{OK: true, Message: "Writable: " + dir}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}

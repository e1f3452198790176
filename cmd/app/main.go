package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitter/internal/app"
	cfgpkg "github.com/local/pdfsplitter/internal/config"
	"github.com/local/pdfsplitter/internal/export"
	"github.com/local/pdfsplitter/internal/loader"
	logpkg "github.com/local/pdfsplitter/internal/logger"
	"github.com/local/pdfsplitter/internal/metrics"
	"github.com/local/pdfsplitter/internal/statuscheck"
	"github.com/local/pdfsplitter/internal/storage"
	"github.com/local/pdfsplitter/internal/store"
	web "github.com/local/pdfsplitter/internal/web"
)

func main() {
	if err := cfgpkg.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Job status store: Redis when configured, in-memory otherwise
	var (
		status store.StatusStore
		pinger statuscheck.RedisPinger
	)
	if cfg.Store.RedisURL != "" {
		rs, err := store.NewRedis(ctx, cfg.Store.RedisURL, cfg.Store.KeyNS, cfg.Store.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init redis status store")
		}
		status, pinger = rs, rs
	} else {
		status = store.NewMemory(0)
	}
	defer status.Close()

	// Optional publication of generated files
	var (
		publisher app.Publisher
		bucket    statuscheck.BucketChecker
	)
	if cfg.Storage.Bucket != "" {
		s3c, err := storage.NewS3Client(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("failed to init s3 client")
		}
		publisher, bucket = s3c, s3c
	}

	ldr := loader.New(loader.Options{
		RenderScale:       cfg.Splitter.RenderScale,
		LargeRenderScale:  cfg.Splitter.LargeRenderScale,
		LargeDocThreshold: cfg.Splitter.LargeDocThreshold,
		ProgressEvery:     cfg.Splitter.ProgressEvery,
		PlaceholderWidth:  cfg.Splitter.PlaceholderWidth,
		PlaceholderHeight: cfg.Splitter.PlaceholderHeight,
		FetchTimeout:      cfg.Splitter.FetchTimeout,
		InputRoot:         cfg.Splitter.InputRoot,
	})
	if cfg.Splitter.InputRoot == "" {
		log.Warn().Msg("SPLIT_INPUT_ROOT not set; any readable local path can be loaded")
	}
	exp := export.New(export.Options{Prefix: cfg.Export.Prefix, CleanupOnFailure: cfg.Export.CleanupOnFailure})

	splitter := app.New(app.Options{
		OutputDir:   cfg.Splitter.OutputDir,
		PageWindow:  cfg.Splitter.PageWindow,
		ThumbWidth:  cfg.Splitter.ThumbWidth,
		ThumbHeight: cfg.Splitter.ThumbHeight,
		Loader:      ldr,
		Exporter:    exp,
		Publisher:   publisher,
		Status:      status,
	})
	loopDone := make(chan struct{})
	go func() {
		splitter.Run(ctx)
		close(loopDone)
	}()

	// Stale download cleanup; the loaded document is kept
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Splitter.CleanupSchedule, func() {
		var keep []string
		if snap, err := splitter.Snapshot(ctx); err == nil && snap.Document != nil {
			keep = append(keep, snap.Document.Path)
		}
		if n := loader.CleanupTemps(cfg.Splitter.TempMaxAge, keep...); n > 0 {
			log.Info().Int("removed", n).Msg("removed stale downloads")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Splitter.CleanupSchedule).Msg("invalid cleanup schedule")
	}
	sched.Start()
	defer sched.Stop()

	checker := statuscheck.New(statuscheck.Options{
		Redis:  pinger,
		Bucket: bucket,
		OutputDir: func() string {
			snap, err := splitter.Snapshot(ctx)
			if err != nil {
				return ""
			}
			return snap.OutputDir
		},
	})

	mux := http.NewServeMux()
	w := web.New(splitter, web.Options{
		Username:     cfg.Web.Username,
		Password:     cfg.Web.Password,
		PasswordHash: cfg.Web.PasswordHash,
		Checker:      checker,
	})
	w.RegisterRoutes(mux)
	mux.Handle("/", http.RedirectHandler("/web/", http.StatusSeeOther))

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(sctx)
	<-loopDone
	log.Info().Msg("shutdown complete")
}

package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"SPLIT_PAGE_WINDOW", "SPLIT_RENDER_SCALE", "SPLIT_KEEP_PARTIAL", "SPLIT_OUTPUT_PREFIX", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Splitter.PageWindow != 30 {
		t.Errorf("PageWindow = %d, want 30", cfg.Splitter.PageWindow)
	}
	if cfg.Splitter.RenderScale != 0.5 || cfg.Splitter.LargeRenderScale != 0.3 {
		t.Errorf("scales = %v/%v, want 0.5/0.3", cfg.Splitter.RenderScale, cfg.Splitter.LargeRenderScale)
	}
	if cfg.Splitter.LargeDocThreshold != 400 {
		t.Errorf("LargeDocThreshold = %d, want 400", cfg.Splitter.LargeDocThreshold)
	}
	if !cfg.Export.CleanupOnFailure {
		t.Error("CleanupOnFailure should default to true")
	}
	if cfg.Export.Prefix != "Parte" {
		t.Errorf("Prefix = %q, want Parte", cfg.Export.Prefix)
	}
	if cfg.Splitter.OutputDir == "" {
		t.Error("OutputDir should default to the install directory")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SPLIT_PAGE_WINDOW", "12")
	t.Setenv("SPLIT_KEEP_PARTIAL", "yes")
	t.Setenv("SPLIT_OUTPUT_DIR", "/tmp/out")
	t.Setenv("SPLIT_FETCH_TIMEOUT", "5s")
	t.Setenv("SPLIT_S3_PREFIX", "/a/b/")
	cfg := FromEnv()
	if cfg.Splitter.PageWindow != 12 {
		t.Errorf("PageWindow = %d, want 12", cfg.Splitter.PageWindow)
	}
	if cfg.Export.CleanupOnFailure {
		t.Error("SPLIT_KEEP_PARTIAL=yes should disable cleanup")
	}
	if cfg.Splitter.OutputDir != "/tmp/out" {
		t.Errorf("OutputDir = %q", cfg.Splitter.OutputDir)
	}
	if cfg.Splitter.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.Splitter.FetchTimeout)
	}
	if cfg.Storage.Prefix != "a/b" {
		t.Errorf("Storage.Prefix = %q, want a/b", cfg.Storage.Prefix)
	}
}

func TestParseHelpers(t *testing.T) {
	if got := parseInt("x", 7); got != 7 {
		t.Errorf("parseInt fallback = %d", got)
	}
	if got := parseFloat("0.25", 1); got != 0.25 {
		t.Errorf("parseFloat = %v", got)
	}
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !parseBool(s) {
			t.Errorf("parseBool(%q) = false", s)
		}
	}
	if parseBool("0") {
		t.Error("parseBool(0) = true")
	}
	if got := parseDuration("bogus", time.Second); got != time.Second {
		t.Errorf("parseDuration fallback = %v", got)
	}
}

func TestWindowNonPositiveFallsBack(t *testing.T) {
	t.Setenv("SPLIT_PAGE_WINDOW", "-3")
	t.Setenv("SPLIT_PROGRESS_EVERY", "0")
	cfg := FromEnv()
	if cfg.Splitter.PageWindow != 30 || cfg.Splitter.ProgressEvery != 5 {
		t.Errorf("got window=%d every=%d", cfg.Splitter.PageWindow, cfg.Splitter.ProgressEvery)
	}
}

package loader

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupTemps removes downloaded sources (pdfsplit-*.pdf in the temp dir)
// older than maxAge and returns how many were removed. Paths in keep are
// left alone.
func CleanupTemps(maxAge time.Duration, keep ...string) int {
	dir := os.TempDir()
	skip := make(map[string]bool, len(keep))
	for _, k := range keep {
		skip[filepath.Clean(k)] = true
	}
	now := time.Now()
	removed := 0
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	prefix := strings.TrimSuffix(tempPattern, "*.pdf")
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if skip[p] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= maxAge {
			if os.Remove(p) == nil {
				removed++
			}
		}
	}
	return removed
}

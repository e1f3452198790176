package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/local/pdfsplitter/internal/storage"
)

const (
	// tempPattern names downloaded sources so CleanupTemps can find them.
	tempPattern = "pdfsplit-*.pdf"
	// uploadSep separates the random part of an upload's temp name from the
	// client's file name.
	uploadSep = "__"
)

// ErrOutsideRoot is returned for local references outside the input root.
var ErrOutsideRoot = errors.New("path outside the allowed input directory")

// source is a resolved document reference.
type source struct {
	Path string // local file to read
	Name string // display / output base name
	Temp bool   // Path was downloaded or uploaded and is owned by the document
}

// CreateUpload creates the temp file an uploaded document is streamed into.
// The client's file name is kept in the temp name so the loaded document
// and its outputs are named after it; the file is owned by the document
// that loads it.
func CreateUpload(name string) (*os.File, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		if r == '*' || r == '/' || r == os.PathSeparator || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" {
		base = "document.pdf"
	}
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		base += ".pdf"
	}
	return os.CreateTemp("", strings.TrimSuffix(tempPattern, ".pdf")+uploadSep+base)
}

// uploadName returns the client file name when p is a file made by
// CreateUpload.
func uploadName(p string) (string, bool) {
	if filepath.Dir(p) != filepath.Clean(os.TempDir()) {
		return "", false
	}
	base := filepath.Base(p)
	prefix := strings.TrimSuffix(tempPattern, "*.pdf")
	if !strings.HasPrefix(base, prefix) {
		return "", false
	}
	i := strings.Index(base, uploadSep)
	if i < 0 || i+len(uploadSep) == len(base) {
		return "", false
	}
	return base[i+len(uploadSep):], true
}

// resolve turns ref into a local file. Supports:
// - file://path or absolute/relative filesystem paths, limited to root when set
// - files created by CreateUpload
// - http(s):// URLs (downloaded to temp)
// - s3://bucket/key (downloaded to temp via AWS SDK v2)
func resolve(ctx context.Context, ref, root string) (source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return source{}, fmt.Errorf("empty document reference")
	}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		_, key, err := storage.ParseURL(ref)
		if err != nil {
			return source{}, err
		}
		p, err := downloadToTemp(func(w io.Writer) error { return storage.DownloadToFile(ctx, ref, w) })
		if err != nil {
			return source{}, err
		}
		return source{Path: p, Name: path.Base(key), Temp: true}, nil
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return source{}, fmt.Errorf("invalid url: %w", err)
		}
		p, err := downloadToTemp(func(w io.Writer) error { return downloadHTTP(ctx, ref, w) })
		if err != nil {
			return source{}, err
		}
		name := path.Base(u.Path)
		if name == "." || name == "/" || name == "" {
			name = "document.pdf"
		}
		return source{Path: p, Name: name, Temp: true}, nil
	case strings.HasPrefix(ref, "file://"):
		ref = strings.TrimPrefix(ref, "file://")
	}

	abs, err := filepath.Abs(ref)
	if err != nil {
		return source{}, err
	}
	name, upload := uploadName(abs)
	if !upload && !within(root, abs) {
		return source{}, fmt.Errorf("%s: %w", ref, ErrOutsideRoot)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return source{}, err
	}
	if info.IsDir() {
		return source{}, fmt.Errorf("%s is a directory", ref)
	}
	if upload {
		return source{Path: abs, Name: name, Temp: true}, nil
	}
	return source{Path: ref, Name: filepath.Base(ref)}, nil
}

// within reports whether p lies inside root; an empty root allows any path.
func within(root, p string) bool {
	if root == "" {
		return true
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func downloadToTemp(fill func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp("", tempPattern)
	if err != nil {
		return "", err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func downloadHTTP(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

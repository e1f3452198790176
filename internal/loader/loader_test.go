package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/local/pdfsplitter/internal/filetype"
	"github.com/local/pdfsplitter/internal/pdftest"
	"github.com/local/pdfsplitter/internal/progress"
	"github.com/local/pdfsplitter/internal/render"
)

// fakeDoc renders a 10x10 image per page, failing for pages in fail.
type fakeDoc struct {
	n      int
	fail   map[int]bool
	scales []float64
	closed bool
}

func (d *fakeDoc) NumPage() int { return d.n }

func (d *fakeDoc) Render(i int, scale float64) (image.Image, error) {
	d.scales = append(d.scales, scale)
	if d.fail[i] {
		return nil, fmt.Errorf("boom on %d", i)
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func (d *fakeDoc) Close() error { d.closed = true; return nil }

func fakeLoader(doc *fakeDoc, count int, countErr error) *Loader {
	return New(Options{
		Opener:  render.OpenerFunc(func(string) (render.Doc, error) { return doc, nil }),
		Counter: func(string) (int, error) { return count, countErr },
	})
}

func pdfHeader(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadRendersEveryPageWithProgress(t *testing.T) {
	doc := &fakeDoc{n: 12}
	var updates []progress.Update
	rep := progress.ReporterFunc(func(u progress.Update) { updates = append(updates, u) })

	got, err := fakeLoader(doc, 12, nil).Load(context.Background(), pdfHeader(t), rep)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PageCount != 12 || len(got.Images) != 12 || got.Name != "doc.pdf" {
		t.Errorf("doc = %d pages, %d images, name %q", got.PageCount, len(got.Images), got.Name)
	}
	if !doc.closed {
		t.Error("render doc not closed")
	}
	var msgs []string
	for _, u := range updates {
		msgs = append(msgs, u.Message)
	}
	want := []string{"Loading page 1 of 12...", "Loading page 6 of 12...", "Loading page 11 of 12...", "Loaded 12 pages"}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("progress (-want +got):\n%s", diff)
	}
	if updates[len(updates)-1].Percent != 100 {
		t.Errorf("final percent = %v", updates[len(updates)-1].Percent)
	}
}

func TestLoadPagePlaceholders(t *testing.T) {
	doc := &fakeDoc{n: 4, fail: map[int]bool{1: true, 3: true}}
	got, err := fakeLoader(doc, 4, nil).Load(context.Background(), pdfHeader(t), nil)
	if err != nil {
		t.Fatalf("a page failure must not abort the load: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3}, got.Placeholders); diff != "" {
		t.Errorf("placeholders (-want +got):\n%s", diff)
	}
	if !render.IsPlaceholder(got.Images[1]) || render.IsPlaceholder(got.Images[0]) {
		t.Error("placeholder image mismatch")
	}
	if b := got.Images[3].Bounds(); b.Dx() != 150 || b.Dy() != 200 {
		t.Errorf("placeholder bounds = %v", b)
	}
}

func TestLoadLargeDocumentScale(t *testing.T) {
	doc := &fakeDoc{n: 402}
	if _, err := fakeLoader(doc, 402, nil).Load(context.Background(), pdfHeader(t), nil); err != nil {
		t.Fatal(err)
	}
	if doc.scales[0] != 0.5 || doc.scales[399] != 0.5 || doc.scales[400] != 0.3 || doc.scales[401] != 0.3 {
		t.Errorf("scales at 0/399/400/401 = %v/%v/%v/%v", doc.scales[0], doc.scales[399], doc.scales[400], doc.scales[401])
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		ref    func(t *testing.T) string
		count  int
		cntErr error
		wantIs error
	}{
		{"zero pages", pdfHeader, 0, nil, ErrNoPages},
		{"count fails", pdfHeader, 0, errors.New("corrupt xref"), nil},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.pdf") }, 3, nil, os.ErrNotExist},
		{"not a pdf", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "notes.pdf")
			os.WriteFile(p, []byte("hello world"), 0o644)
			return p
		}, 3, nil, filetype.ErrNotPDF},
		{"empty ref", func(*testing.T) string { return "" }, 3, nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fakeLoader(&fakeDoc{n: tc.count}, tc.count, tc.cntErr).Load(context.Background(), tc.ref(t), nil)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err = %v, want *LoadError", err)
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Errorf("err = %v, want %v", err, tc.wantIs)
			}
		})
	}
}

func TestLoadRetryAfterFailure(t *testing.T) {
	l := fakeLoader(&fakeDoc{n: 2}, 2, nil)
	if _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), nil); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := l.Load(context.Background(), pdfHeader(t), nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fakeLoader(&fakeDoc{n: 3}, 3, nil).Load(ctx, pdfHeader(t), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLoadFileURLAndHTTP(t *testing.T) {
	p := pdfHeader(t)
	got, err := fakeLoader(&fakeDoc{n: 1}, 1, nil).Load(context.Background(), "file://"+p, nil)
	if err != nil {
		t.Fatalf("file:// load: %v", err)
	}
	if got.Path != p || got.Close() != nil {
		t.Errorf("path = %q", got.Path)
	}
	if _, err := os.Stat(p); err != nil {
		t.Error("local source must not be removed on Close")
	}

	body, _ := os.ReadFile(p)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/report.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	got, err = fakeLoader(&fakeDoc{n: 1}, 1, nil).Load(context.Background(), srv.URL+"/files/report.pdf", nil)
	if err != nil {
		t.Fatalf("http load: %v", err)
	}
	if got.Name != "report.pdf" {
		t.Errorf("name = %q", got.Name)
	}
	if _, err := os.Stat(got.Path); err != nil {
		t.Fatalf("downloaded copy missing: %v", err)
	}
	if err := got.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(got.Path); !os.IsNotExist(err) {
		t.Error("downloaded copy not removed on Close")
	}

	if _, err := fakeLoader(&fakeDoc{n: 1}, 1, nil).Load(context.Background(), srv.URL+"/missing.pdf", nil); err == nil {
		t.Error("404 should fail")
	}
}

func TestLoadUploadIsOwnedByDocument(t *testing.T) {
	body, _ := os.ReadFile(pdfHeader(t))
	f, err := CreateUpload(`C:\\scans\\Q3 report.pdf`)
	if err != nil {
		t.Fatal(err)
	}
	f.Write(body)
	f.Close()
	defer os.Remove(f.Name())

	got, err := fakeLoader(&fakeDoc{n: 1}, 1, nil).Load(context.Background(), f.Name(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "Q3 report.pdf" {
		t.Errorf("name = %q", got.Name)
	}
	if err := got.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f.Name()); !os.IsNotExist(err) {
		t.Error("upload not removed on Close")
	}
}

func TestCreateUploadName(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd.pdf"},
		{"a*b.PDF", "a_b.PDF"},
		{"", "document.pdf"},
	} {
		f, err := CreateUpload(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		f.Close()
		os.Remove(f.Name())
		name, ok := uploadName(f.Name())
		if !ok || name != tc.want {
			t.Errorf("CreateUpload(%q) -> %q (%v), want %q", tc.in, name, ok, tc.want)
		}
	}
}

func TestLoadInputRoot(t *testing.T) {
	root := t.TempDir()
	inside := pdftest.MakePDF(t, root, "in.pdf", 1)
	outside := pdfHeader(t)

	l := fakeLoader(&fakeDoc{n: 1}, 1, nil)
	l.opts.InputRoot = root
	if _, err := l.Load(context.Background(), inside, nil); err != nil {
		t.Errorf("inside root: %v", err)
	}
	if _, err := l.Load(context.Background(), outside, nil); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("outside root: err = %v", err)
	}
	if _, err := l.Load(context.Background(), filepath.Join(root, "..", filepath.Base(filepath.Dir(outside)), filepath.Base(outside)), nil); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("dot-dot escape: err = %v", err)
	}
}

func TestCleanupTemps(t *testing.T) {
	old, err := os.CreateTemp("", tempPattern)
	if err != nil {
		t.Fatal(err)
	}
	old.Close()
	kept, _ := os.CreateTemp("", tempPattern)
	kept.Close()
	past := time.Now().Add(-2 * time.Hour)
	os.Chtimes(old.Name(), past, past)
	os.Chtimes(kept.Name(), past, past)
	defer os.Remove(kept.Name())

	if n := CleanupTemps(time.Hour, kept.Name()); n < 1 {
		t.Errorf("removed %d files", n)
	}
	if _, err := os.Stat(old.Name()); !os.IsNotExist(err) {
		t.Error("stale temp survived")
	}
	if _, err := os.Stat(kept.Name()); err != nil {
		t.Error("kept temp removed")
	}
}

func TestLoadRealPDFCount(t *testing.T) {
	p := pdftest.MakePDF(t, t.TempDir(), "real.pdf", 3)
	doc := &fakeDoc{n: 3}
	l := New(Options{Opener: render.OpenerFunc(func(string) (render.Doc, error) { return doc, nil })})
	got, err := l.Load(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PageCount != 3 {
		t.Errorf("pdfcpu page count = %d, want 3", got.PageCount)
	}

	bad := pdftest.WriteCorrupt(t, t.TempDir(), "bad.pdf")
	if _, err := l.Load(context.Background(), bad, nil); err == nil {
		t.Error("corrupt pdf should fail")
	}
}

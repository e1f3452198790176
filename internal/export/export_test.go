package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/local/pdfsplitter/internal/pdftest"
	"github.com/local/pdfsplitter/internal/progress"
	"github.com/local/pdfsplitter/internal/selection"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		index   int
		orig    string
		counter int
		want    string
	}{
		{0, "report.pdf", 0, "Parte_1_report.pdf"},
		{2, "report.pdf", 0, "Parte_3_report.pdf"},
		{0, "report.pdf", 1, "Parte_1_1_report.pdf"},
		{4, "/tmp/x/my.file.PDF", 2, "Parte_5_2_my.file.PDF"},
		{0, "noext", 0, "Parte_1_noext"},
	}
	for _, tc := range tests {
		if got := OutputName("Parte", tc.index, tc.orig, tc.counter); got != tc.want {
			t.Errorf("OutputName(%d, %q, %d) = %q, want %q", tc.index, tc.orig, tc.counter, got, tc.want)
		}
	}
}

func TestCreateUniqueSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"Parte_1_doc.pdf", "Parte_1_1_doc.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("keep"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	f, path, err := CreateUnique(dir, "Parte", 0, "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if filepath.Base(path) != "Parte_1_2_doc.pdf" {
		t.Errorf("path = %s", path)
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "Parte_1_doc.pdf")); string(b) != "keep" {
		t.Error("existing file was touched")
	}
}

func TestExportRanges(t *testing.T) {
	src := pdftest.MakePDF(t, t.TempDir(), "doc.pdf", 10)
	srcHeights := pdftest.Heights(t, src)
	out := filepath.Join(t.TempDir(), "out")

	ranges := []selection.Range{{Start: 5, End: 7}, {Start: 0, End: 2}, {Start: 9, End: 10}}
	files, err := New(Options{}).Export(context.Background(), Request{Ranges: ranges, Source: src, OutputDir: out}, nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	wantNames := []string{"Parte_1_doc.pdf", "Parte_2_doc.pdf", "Parte_3_doc.pdf"}
	var gotNames []string
	for _, f := range files {
		gotNames = append(gotNames, filepath.Base(f))
	}
	if diff := cmp.Diff(wantNames, gotNames); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
	for i, r := range ranges {
		var want []float64
		for _, p := range r.Pages() {
			want = append(want, srcHeights[p])
		}
		if diff := cmp.Diff(want, pdftest.Heights(t, files[i])); diff != "" {
			t.Errorf("part %d pages (-want +got):\n%s", i+1, diff)
		}
	}
}

func TestExportCollisionAddsCounter(t *testing.T) {
	src := pdftest.MakePDF(t, t.TempDir(), "doc.pdf", 3)
	out := t.TempDir()
	existing := filepath.Join(out, "Parte_1_doc.pdf")
	if err := os.WriteFile(existing, []byte("previous run"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := New(Options{}).Export(context.Background(), Request{
		Ranges: []selection.Range{{Start: 0, End: 3}}, Source: src, OutputDir: out,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(files[0]) != "Parte_1_1_doc.pdf" {
		t.Errorf("file = %s", files[0])
	}
	if b, _ := os.ReadFile(existing); string(b) != "previous run" {
		t.Error("existing output overwritten")
	}
}

func TestExportProgress(t *testing.T) {
	src := pdftest.MakePDF(t, t.TempDir(), "doc.pdf", 4)
	var pcts []float64
	rep := progress.ReporterFunc(func(u progress.Update) { pcts = append(pcts, u.Percent) })

	ranges := []selection.Range{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 3}, {Start: 3, End: 4}}
	if _, err := New(Options{}).Export(context.Background(), Request{Ranges: ranges, Source: src, OutputDir: t.TempDir()}, rep); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Fatalf("progress decreased: %v", pcts)
		}
	}
	for i, p := range pcts[:len(pcts)-1] {
		if p >= 100 {
			t.Fatalf("update %d reached 100 before the last range: %v", i, pcts)
		}
	}
	if pcts[len(pcts)-1] != 100 {
		t.Errorf("final progress = %v", pcts[len(pcts)-1])
	}
}

func TestExportNoRanges(t *testing.T) {
	_, err := New(Options{}).Export(context.Background(), Request{Source: "x.pdf", OutputDir: t.TempDir()}, nil)
	if !errors.Is(err, ErrNoRanges) {
		t.Errorf("err = %v", err)
	}
}

func TestExportFailureCleanup(t *testing.T) {
	src := pdftest.MakePDF(t, t.TempDir(), "doc.pdf", 3)
	// the second range is past the end of the document
	ranges := []selection.Range{{Start: 0, End: 2}, {Start: 2, End: 5}}

	for _, cleanup := range []bool{true, false} {
		out := t.TempDir()
		_, err := New(Options{CleanupOnFailure: cleanup}).Export(context.Background(), Request{Ranges: ranges, Source: src, OutputDir: out}, nil)
		var xe *ExportError
		if !errors.As(err, &xe) {
			t.Fatalf("err = %v, want *ExportError", err)
		}
		if xe.Index != 1 {
			t.Errorf("failed index = %d", xe.Index)
		}
		entries, _ := os.ReadDir(out)
		if cleanup && (len(entries) != 0 || len(xe.Written) != 0) {
			t.Errorf("cleanup left %d files, Written=%v", len(entries), xe.Written)
		}
		if !cleanup && (len(entries) != 1 || len(xe.Written) != 1) {
			t.Errorf("keep partial: %d files, Written=%v", len(entries), xe.Written)
		}
	}
}

func TestExportCorruptSource(t *testing.T) {
	bad := pdftest.WriteCorrupt(t, t.TempDir(), "bad.pdf")
	_, err := New(Options{}).Export(context.Background(), Request{
		Ranges: []selection.Range{{Start: 0, End: 1}}, Source: bad, OutputDir: t.TempDir(),
	}, nil)
	var xe *ExportError
	if !errors.As(err, &xe) || xe.Index != -1 {
		t.Errorf("err = %v", err)
	}
}

func TestExportCancelled(t *testing.T) {
	src := pdftest.MakePDF(t, t.TempDir(), "doc.pdf", 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{CleanupOnFailure: true}).Export(ctx, Request{
		Ranges: []selection.Range{{Start: 0, End: 1}}, Source: src, OutputDir: t.TempDir(),
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

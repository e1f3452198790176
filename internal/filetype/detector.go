// Package filetype checks input documents by content rather than by name.
package filetype

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

var (
	// ErrNotPDF is returned when the content is not a PDF document.
	ErrNotPDF = errors.New("not a PDF")
	// ErrEmpty is returned for zero-length files.
	ErrEmpty = errors.New("file is empty")
)

// Info describes a sniffed file.
type Info struct {
	MIME      string
	Extension string
	Size      int64
}

// IsPDF reports whether the content was recognised as a PDF.
func (i Info) IsPDF() bool { return i.MIME == pdfMIME }

// Detector sniffs magic bytes with mimetype.
type Detector struct{}

func New() *Detector { return &Detector{} }

// Detect reads the header of path.
func (d *Detector) Detect(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("detect file type: %w", err)
	}
	if st.Size() == 0 {
		return Info{Size: 0}, ErrEmpty
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("detect file type: %w", err)
	}
	info := Info{MIME: mt.String(), Extension: mt.Extension(), Size: st.Size()}
	log.Debug().Str("mime", info.MIME).Int64("size", info.Size).Str("file", path).Msg("detected file type")
	return info, nil
}

// RequirePDF returns an error wrapping ErrNotPDF unless path holds a PDF.
func (d *Detector) RequirePDF(path string) error {
	info, err := d.Detect(path)
	if err != nil {
		return err
	}
	if !info.IsPDF() {
		return fmt.Errorf("%w: detected %s", ErrNotPDF, describe(info.MIME))
	}
	return nil
}

func describe(mime string) string {
	if mt := mimetype.Lookup(mime); mt != nil && mt.Extension() != "" {
		return fmt.Sprintf("%s (%s)", mime, mt.Extension())
	}
	return mime
}

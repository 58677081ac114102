// Package pdfextract pulls plain text out of PDF files.
package pdfextract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF parses but yields no text.
var ErrNoText = errors.New("pdf contains no extractable text")

// ExtractFile opens the PDF at path and returns its page count and the text of
// all pages concatenated in order.
func ExtractFile(path string) (int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open pdf failed: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("stat pdf failed: %w", err)
	}
	return Extract(f, info.Size())
}

// Extract reads a PDF of the given size from r. Pages are joined without a
// separator. An error on any page aborts the whole document.
func Extract(r io.ReaderAt, size int64) (pages int, text string, err error) {
	if size == 0 {
		return 0, "", fmt.Errorf("parse pdf failed: empty file")
	}
	// the parser panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			pages, text = 0, ""
			err = fmt.Errorf("parse pdf failed: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, "", fmt.Errorf("parse pdf failed: %w", err)
	}

	total := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return 0, "", fmt.Errorf("extract page %d failed: %w", i, err)
		}
		sb.WriteString(content)
	}

	text = sb.String()
	if strings.TrimSpace(text) == "" {
		return total, "", ErrNoText
	}
	return total, text, nil
}

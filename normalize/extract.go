package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
)

// Extractor returns the plain text of the file at path.
type Extractor func(ctx context.Context, path string) (string, error)

func defaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".txt":  extractPlain,
		".md":   extractPlain,
		".html": extractHTML,
		".htm":  extractHTML,
	}
}

func extractPlain(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), ""), nil
}

func extractHTML(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HTMLToText(f)
}

func extractPDF(_ context.Context, path string) (text string, err error) {
	// The PDF reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

var errNoDocumentText = errors.New("docx has no body text")

func extractDOCX(_ context.Context, path string) (text string, err error) {
	// The converter panics on archives that lack a content types part
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading docx %s: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}
	defer f.Close()

	body, _, err := docconv.ConvertDocx(f)
	if err != nil {
		return "", fmt.Errorf("reading docx: %w", err)
	}
	text = strings.TrimSpace(body)
	if text == "" {
		return "", errNoDocumentText
	}
	return text, nil
}

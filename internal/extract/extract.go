// Package extract turns uploaded document files into plain text for chunking.
// PDF, plain text, and Markdown files are supported; anything else is
// rejected before a document record is created.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// supportedTypes maps accepted file extensions (without dot) to true.
var supportedTypes = map[string]bool{
	"pdf": true,
	"txt": true,
	"md":  true,
}

// FileType returns the lowercased extension of the filename without the dot,
// or an error naming the supported types when the extension is not accepted.
func FileType(filename string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !supportedTypes[ext] {
		return "", fmt.Errorf("extract: unsupported file type %q — supported: pdf, txt, md", ext)
	}
	return ext, nil
}

// Text reads the file at path and returns its plain text content. fileType
// must be a value previously returned by FileType.
func Text(path, fileType string) (string, error) {
	switch fileType {
	case "pdf":
		return pdfText(path)
	case "txt", "md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("extract: read %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("extract: unsupported file type %q — supported: pdf, txt, md", fileType)
	}
}

// pdfText extracts the text layer of a PDF. Image-only PDFs yield empty
// output; OCR is out of scope.
func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract: read pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("extract: buffer pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}

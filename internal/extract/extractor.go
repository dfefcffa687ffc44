// Package extract turns document files into plain text for the keyword index.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lu4p/cat"
)

// DefaultMaxBytes caps how much of a file is read for extraction.
const DefaultMaxBytes = 64 << 20

// metadataOnly lists types indexed by name and date only.
var metadataOnly = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".heic": true,
	".zip": true, ".gz": true, ".mp3": true, ".mp4": true, ".mov": true,
}

// Extractor extracts plain text from document files.
type Extractor struct {
	maxBytes int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxBytes skips body extraction for files larger than n bytes.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its text content. Images, media
// and files over the size cap yield empty text so they are still indexed by name.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if metadataOnly[ext] {
		return "", nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > e.maxBytes {
		return "", nil
	}
	if ext == ".rtf" {
		return extractRTF(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odt", ".odp", ".ods":
		return extractODF(content, ext)
	case ".rtf":
		return extractRTFBytes(content)
	case ".txt", ".md", ".rst", ".csv", ".json", ".log", "":
		return extractPlain(content)
	}
	if metadataOnly[strings.ToLower(ext)] || looksBinary(content) {
		return "", nil
	}
	return extractPlain(content)
}

// extractRTF uses lu4p/cat, which detects the format from the file itself.
func extractRTF(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func extractRTFBytes(content []byte) (string, error) {
	f, err := os.CreateTemp("", "extract-*.rtf")
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return extractRTF(f.Name())
}

// looksBinary reports whether the first block of content has NUL bytes or is not UTF-8.
func looksBinary(content []byte) bool {
	head := content
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	for len(head) > 0 {
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size == 1 && len(head) > utf8.UTFMax {
			return true
		}
		head = head[size:]
	}
	return false
}

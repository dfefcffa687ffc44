// Package models defines core data structures for documents, parsed queries, and result pages.
package models

import "strings"

// Document is a single searchable file as surfaced to callers. Timestamps are
// epoch seconds; FileType is the lowercase extension without its leading dot.
type Document struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Path         string `json:"path" db:"path"`
	FileType     string `json:"file_type" db:"file_type"`
	Size         int64  `json:"size" db:"size"`
	CreatedAt    int64  `json:"created_at" db:"created_at"`
	LastModified int64  `json:"last_modified" db:"last_modified"`
	LastOpened   int64  `json:"last_opened,omitempty" db:"last_opened"`
	IsPinned     bool   `json:"is_pinned" db:"is_pinned"`
}

// IndexedDocument is a Document plus the extracted body text fed to the keyword index.
type IndexedDocument struct {
	Document
	Body string `json:"body,omitempty"`
}

// NormalizeFileType lowercases ext and strips a leading dot ("PDF", ".pdf" -> "pdf").
func NormalizeFileType(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Thumbnail is a base64-encoded preview for a document path. Base64 is empty
// while the preview has not been fetched.
type Thumbnail struct {
	Path   string `json:"path"`
	Base64 string `json:"base64"`
}

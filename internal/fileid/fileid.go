// Package fileid derives stable document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Prefix marks IDs derived from a path.
const Prefix = "file:"

// ForPath returns the document ID for a cleaned path. The same path always yields the same ID.
func ForPath(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return Prefix + hex.EncodeToString(sum[:])
}

// Canonical makes path absolute and clean, the form stored and hashed for every document.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// Valid reports whether id has the shape ForPath produces.
func Valid(id string) bool {
	h := strings.TrimPrefix(id, Prefix)
	if len(h) != len(id)-len(Prefix) || len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForPath(t *testing.T) {
	id := ForPath("/foo/bar.txt")
	if id != ForPath("/foo/bar.txt") {
		t.Error("same path should give same ID")
	}
	if !strings.HasPrefix(id, Prefix) || !Valid(id) {
		t.Errorf("malformed ID %q", id)
	}
	if id == ForPath("/foo/baz.txt") {
		t.Error("different paths should give different IDs")
	}
}

func TestForPath_normalized(t *testing.T) {
	want := ForPath("/foo/bar")
	for _, p := range []string{"/foo/bar/", "/foo/./bar", "/foo/baz/../bar"} {
		if got := ForPath(p); got != want {
			t.Errorf("ForPath(%q) differs from /foo/bar", p)
		}
	}
}

func TestCanonical(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Canonical("a/../b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wd, "b.txt"); got != want {
		t.Errorf("Canonical = %q, want %q", got, want)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{ForPath("/x"), true},
		{"file:abc", false},
		{strings.TrimPrefix(ForPath("/x"), Prefix), false},
		{Prefix + strings.Repeat("z", 64), false},
	}
	for _, tt := range tests {
		if got := Valid(tt.id); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

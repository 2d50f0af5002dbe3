package security

import (
	"errors"
	"testing"
)

func TestAllowListCheck(t *testing.T) {
	t.Parallel()

	allow := NewAllowList([]string{"https://example.org/", " https://docs.example.org/ ", ""})

	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://example.org/page", nil},
		{"https://docs.example.org/guide.pdf", nil},
		{"https://evil.example.com/", ErrURLNotAllowed},
		{"http://example.org/page", ErrURLNotAllowed}, // scheme is part of the prefix
		{"", ErrURLNotAllowed},
	}

	for _, tt := range tests {
		if err := allow.Check(tt.url); !errors.Is(err, tt.wantErr) {
			t.Errorf("Check(%q) = %v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestAllowListFailClosed(t *testing.T) {
	t.Parallel()

	for _, prefixes := range [][]string{nil, {}, {"", "   "}} {
		allow := NewAllowList(prefixes)
		if !allow.Empty() {
			t.Fatalf("NewAllowList(%q).Empty() = false, want true", prefixes)
		}
		if err := allow.Check("https://example.org/"); !errors.Is(err, ErrAllowListEmpty) {
			t.Errorf("Check with empty list = %v, want ErrAllowListEmpty", err)
		}
	}
}

package security

import (
	"errors"
	"strings"
)

var (
	// ErrAllowListEmpty indicates the allow-list has no entries. This is a
	// configuration fault: every caller must treat it as "reject everything",
	// never as "allow everything".
	ErrAllowListEmpty = errors.New("url allow-list is not configured")

	// ErrURLNotAllowed indicates the URL matched no allowed prefix. This is a
	// permanent rejection, not a retryable condition.
	ErrURLNotAllowed = errors.New("url is not on the list of authorized sources")
)

// AllowList validates document URLs against a fixed set of allowed prefixes.
// The zero value (no prefixes) is fail-closed.
type AllowList struct {
	prefixes []string
}

// NewAllowList builds an AllowList from configured prefixes, dropping empty
// entries.
func NewAllowList(prefixes []string) *AllowList {
	var cleaned []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &AllowList{prefixes: cleaned}
}

// Empty reports whether the allow-list has no entries.
func (a *AllowList) Empty() bool {
	return len(a.prefixes) == 0
}

// Check returns nil when url starts with an allowed prefix,
// ErrAllowListEmpty when no prefixes are configured, and ErrURLNotAllowed
// otherwise.
func (a *AllowList) Check(url string) error {
	if a.Empty() {
		return ErrAllowListEmpty
	}
	for _, p := range a.prefixes {
		if strings.HasPrefix(url, p) {
			return nil
		}
	}
	return ErrURLNotAllowed
}

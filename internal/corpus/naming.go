// Package corpus manages the document index and its backing blob storage.
//
// A logical document is identified by the sha256 of its source URL, not of
// its content: re-ingesting a URL always addresses the same document, which
// is what makes upserts idempotent. Both the index label and the blob name
// carry the hash followed by the url-encoded source URL, so either side can
// be resolved back to the original URL without a lookup.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// txtSuffix marks plain-text blobs. PDF blobs are stored without it.
const txtSuffix = ".txt"

// HashURL returns the hex sha256 of a source URL, the stable identity of its
// logical document.
func HashURL(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// Label builds the identifying label for a document:
// "{sha256(url)}|{url-encoded url}.txt" for text, without the suffix for
// binary blobs.
func Label(sourceURL string, binary bool) string {
	name := HashURL(sourceURL) + "|" + url.QueryEscape(sourceURL)
	if !binary {
		name += txtSuffix
	}
	return name
}

// ParseLabel recovers the source URL from a label. Returns "" when the label
// is not in the expected form.
func ParseLabel(label string) string {
	_, encoded, found := strings.Cut(label, "|")
	if !found {
		return ""
	}
	encoded = strings.TrimSuffix(encoded, txtSuffix)
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return ""
	}
	return decoded
}

// hashPrefixPattern is the LIKE pattern matching every label of a document.
func hashPrefixPattern(hash string) string {
	return hash + "|%"
}

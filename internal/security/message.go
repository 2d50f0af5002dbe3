// Package security provides input validators for ragline.
//
// Chat messages pass through a rewrite pipeline before they ever reach the
// model: structurally invalid or suspicious input is replaced with a sentinel
// query that the system prompt answers with a canned refusal. The end user
// never sees the sentinel itself, only the refusal the model produces for it.
//
// The package also holds the URL allow-list used by both the webhook handler
// and the ingestion worker, and the PII detector (pii.go).
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentinel queries substituted for rejected input. The grounded-answer prompt
// recognizes these and produces a fixed refusal instead of an answer.
const (
	// SentinelInvalidInput replaces messages that fail structural checks
	// (length bounds, no alphanumeric content).
	SentinelInvalidInput = "UNANSWERABLE_QUERY_DUE_TO_INVALID_INPUT"

	// SentinelPromptFilter replaces messages that match a prompt-injection
	// keyword or the literal string "null".
	SentinelPromptFilter = "UNANSWERABLE_QUERY_DUE_TO_PROMPT_FILTER"
)

// Message length bounds in characters, not bytes: syllabary runes are three
// bytes each and must count as one. The minimum applies to the trimmed
// message, the maximum to the raw message.
const (
	MinMessageLen = 3
	MaxMessageLen = 2048
)

// injectionKeywords is the fixed list scanned against the normalized message.
// Keywords are written post-normalization: lowercase, with every character
// outside [a-zA-Z0-9 .?-] already stripped from the input.
var injectionKeywords = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"ignore the above",
	"disregard previous instructions",
	"disregard the above",
	"forget your instructions",
	"forget all previous",
	"override your instructions",
	"system prompt",
	"system instruction",
	"you are now",
	"act as if you",
	"pretend you are",
	"developer mode",
	"admin mode",
	"do anything now",
	"jailbreak",
	"reveal your prompt",
	"repeat your instructions",
	"print your instructions",
}

// alnumPattern matches ASCII alphanumerics plus the Cherokee syllabary
// (U+13A0–U+13FF) and Cherokee Supplement (U+AB70–U+ABBF) blocks, so
// syllabary-only questions are not rejected as empty.
var alnumPattern = regexp.MustCompile("[a-zA-Z0-9Ꭰ-᏿ꭰ-ꮿ]")

// cleaningPattern strips everything that is not a letter, digit, whitespace,
// or one of ". ? -" before keyword scanning, defeating punctuation smuggling
// like "i-g-n-o-r-e" -> "ignore" is NOT collapsed (separators become empty),
// but "ignore, previous; instructions!" matches.
var cleaningPattern = regexp.MustCompile(`[^a-zA-Z0-9\s.?-]`)

// htmlTagPattern detects markup in the raw message.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// SanitizeMessage applies the structural and keyword checks in order and
// returns the message to forward to the model: either the original message or
// one of the sentinels. The reason return names the first failed check for
// logging ("" when the message passed).
func SanitizeMessage(message string) (sanitized, reason string) {
	if utf8.RuneCountInString(strings.TrimSpace(message)) < MinMessageLen ||
		utf8.RuneCountInString(message) > MaxMessageLen {
		return SentinelInvalidInput, "invalid_length"
	}

	if !alnumPattern.MatchString(message) {
		return SentinelInvalidInput, "no_alphanumeric_content"
	}

	if message == "null" {
		return SentinelPromptFilter, "null_literal"
	}

	normalized := NormalizeForScan(message)
	for _, keyword := range injectionKeywords {
		if strings.Contains(normalized, keyword) {
			return SentinelPromptFilter, "injection_keyword"
		}
	}

	return message, ""
}

// NormalizeForScan lowercases the message and strips punctuation outside the
// small retained set, matching the form injectionKeywords are written in.
func NormalizeForScan(message string) string {
	return cleaningPattern.ReplaceAllString(strings.ToLower(message), "")
}

// ContainsHTML reports whether the message contains anything shaped like an
// HTML/XML tag.
func ContainsHTML(message string) bool {
	return htmlTagPattern.MatchString(message)
}

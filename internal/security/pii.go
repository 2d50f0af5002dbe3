package security

import (
	"fmt"
	"regexp"
	"strings"
)

// piiPattern pairs a label with its detector. Order matters for masking:
// broader patterns run later so narrower labels win on overlapping text.
type piiPattern struct {
	label   string
	pattern *regexp.Regexp
}

// piiPatterns is the fixed set of PII detectors. The phone pattern accepts
// optional country codes and area-code parentheses; the 6-digit pattern
// covers tribal citizen ID numbers.
var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)},
	{"phone", regexp.MustCompile(`\b(?:(?:\+|00)[1-9]\d{0,2}[ \-])?(?:\(\d{3}\)[ \-])?\d{3}[ \-]?\d{4}(?:[ \-]?\d+)?\b`)},
	{"ssn_usa", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{"aadhaar_india", regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)},
	{"pan_india", regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)},
	{"passport", regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`)},
	{"ip_address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"iban", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)},
	{"dob", regexp.MustCompile(`\b(?:\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2})\b`)},
	{"address", regexp.MustCompile(`(?i)\b\d{1,5}\s+(?:[A-Za-z0-9#]+\s?)+(?:Street|St|Road|Rd|Avenue|Ave|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`)},
	{"citizen_id", regexp.MustCompile(`\b\d{6}\b`)},
}

// DetectAndMaskPII reports whether text contains anything matching a PII
// pattern. When it does, the second return holds the text with every match
// replaced by a [MASKED_<LABEL>] placeholder; otherwise the text is returned
// unchanged.
func DetectAndMaskPII(text string) (bool, string) {
	if text == "" {
		return false, ""
	}

	detected := false
	for _, p := range piiPatterns {
		if p.pattern.MatchString(text) {
			detected = true
			break
		}
	}
	if !detected {
		return false, text
	}

	masked := text
	for _, p := range piiPatterns {
		masked = p.pattern.ReplaceAllString(masked, fmt.Sprintf("[MASKED_%s]", strings.ToUpper(p.label)))
	}
	return true, masked
}

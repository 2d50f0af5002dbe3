// Package enrich produces the supplementary payloads that follow the primary
// answer: titled contact information and follow-up questions. Every function
// here is fail-soft: a model failure degrades to an empty or default result,
// never to a failed request.
package enrich

import (
	"regexp"
	"sort"
	"strings"
)

// Caps on extracted contacts per kind.
const (
	maxURLs       = 4
	maxSourceURLs = 3
	maxEmails     = 4
	maxPhones     = 4
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`)

	contactURLPattern = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s/$.?#].[^\s]*?(?:(?:\.[a-z]{2,5})(?:\.txt)?)(?:$|\s|["'<>])|` +
		`\b(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}/[^\s]*?(?:(?:\.[a-z]{2,5})(?:\.txt)?)(?:$|\s|["'<>])|` +
		`\b(?:[a-zA-Z0-9-]+\.){2,}[a-zA-Z]{2,}(?:/[^\s]*)?\b`)

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// North American dialable numbers: area code and exchange cannot start
	// with 0 or 1.
	phonePattern = regexp.MustCompile(`\(?\b[2-9][0-9]{2}\)?[-.\s]?[2-9][0-9]{2}[-.\s]?[0-9]{4}\b`)

	txtAfterExtPattern = regexp.MustCompile(`(?i)(\.[a-z0-9]{1,6})\.txt($|\?|#|&)`)
	bareTxtPattern     = regexp.MustCompile(`(?i)\.txt($|\?|#|&)`)
)

// Contacts holds the raw contact strings found in a response text, each kind
// de-duplicated, sorted, and capped.
type Contacts struct {
	URLs   []string
	Emails []string
	Phones []string
}

// Empty reports whether no contacts were found.
func (c Contacts) Empty() bool {
	return len(c.URLs) == 0 && len(c.Emails) == 0 && len(c.Phones) == 0
}

// All returns every contact string across kinds, sorted, for the batched
// title prompt.
func (c Contacts) All() []string {
	all := make([]string, 0, len(c.URLs)+len(c.Emails)+len(c.Phones))
	all = append(all, c.URLs...)
	all = append(all, c.Emails...)
	all = append(all, c.Phones...)
	sort.Strings(all)
	return all
}

// ExtractContacts finds URLs, emails, and phone numbers in text. Markdown
// links are flattened to their targets before URL scanning. When the
// completion service supplied an explicit source list, its first 3 entries
// take precedence over regex-discovered URLs entirely; emails and phones are
// always regex-discovered.
func ExtractContacts(text string, sources []string) Contacts {
	flattened := markdownLinkPattern.ReplaceAllString(text, "$1")

	var urls []string
	if len(sources) > 0 {
		urls = append(urls, sources[:min(len(sources), maxSourceURLs)]...)
	} else {
		seen := make(map[string]struct{})
		for _, raw := range contactURLPattern.FindAllString(flattened, -1) {
			u := normalizeURL(raw)
			if _, dup := seen[u]; !dup {
				seen[u] = struct{}{}
				urls = append(urls, u)
			}
		}
		sort.Strings(urls)
		if len(urls) > maxURLs {
			urls = urls[:maxURLs]
		}
	}

	return Contacts{
		URLs:   urls,
		Emails: dedupeSorted(emailPattern.FindAllString(text, -1), maxEmails),
		Phones: dedupeSorted(phonePattern.FindAllString(text, -1), maxPhones),
	}
}

// normalizeURL cleans a regex-discovered URL: trailing dots/slashes and
// delimiter residue are trimmed, blob ".txt" suffixes are stripped, and a
// scheme is defaulted.
func normalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), `"'<>`)
	u = strings.TrimRight(u, "./")
	u = txtAfterExtPattern.ReplaceAllString(u, "$1$2")
	u = bareTxtPattern.ReplaceAllString(u, "$1")
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	return u
}

func dedupeSorted(items []string, cap int) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, dup := seen[item]; !dup {
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	sort.Strings(out)
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

package chat

import "regexp"

// The model cites retrieved documents with numeric markers like [3] or
// [12, 4]. Markers are stripped before text reaches the client. Because the
// stream is chunked, a marker can be split across two chunks; the partial
// patterns remove the dangling halves on either side of the boundary.
var (
	citationPattern        = regexp.MustCompile(`\[\s*\d+(?:\s*,\s*\d+)*\s*\]`)
	trailingPartialPattern = regexp.MustCompile(`\[\s*\d*(?:,\s*\d*)*\s*$`)
	leadingPartialPattern  = regexp.MustCompile(`^\s*\d*(?:,\s*\d*)*\s*\]`)
)

// urlPattern matches URLs in generated text, with or without scheme.
var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s/$.?#].[^\s]*?(?:(?:\.[a-z]{2,5})(?:\.txt)?)(?:$|\s|["'<>])|` +
	`\b(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}/[^\s]*?(?:(?:\.[a-z]{2,5})(?:\.txt)?)(?:$|\s|["'<>])|` +
	`\b(?:[a-zA-Z0-9-]+\.){2,}[a-zA-Z]{2,}(?:/[^\s]*)?\b`)

// txtSuffixPattern matches a stray ".txt" appended after a real file
// extension. Corpus blob names end in ".txt", and the model occasionally
// leaks that suffix into URLs it quotes. The matched URL text carries its
// terminator character, so the suffix may be followed by whitespace or a
// quote as well as a query separator or end of string.
var txtSuffixPattern = regexp.MustCompile(`(?i)(\.[a-z0-9]{1,6})\.txt($|\?|#|&|\s|["'<>])`)

// CleanChunk strips citation markers (complete and boundary-split) and blob
// suffixes from one streamed text chunk.
func CleanChunk(text string) string {
	text = citationPattern.ReplaceAllString(text, "")
	text = cleanTxtInURLs(text)
	text = trailingPartialPattern.ReplaceAllString(text, "")
	text = leadingPartialPattern.ReplaceAllString(text, "")
	return text
}

// cleanTxtInURLs removes the blob ".txt" suffix from URLs inside text.
func cleanTxtInURLs(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(url string) string {
		return txtSuffixPattern.ReplaceAllString(url, "$1$2")
	})
}

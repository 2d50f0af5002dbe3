package enrich

import (
	"encoding/json"
	"regexp"
	"strings"
)

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*\n(.*?)\n\\s*```")

// decodeJSONBlock unmarshals a model response that may be wrapped in a
// markdown code fence despite the JSON response MIME type.
func decodeJSONBlock(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if m := jsonFencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return json.Unmarshal([]byte(s), v)
}

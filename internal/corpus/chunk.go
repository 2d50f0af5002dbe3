package corpus

// Chunking parameters for indexed documents.
const (
	chunkSize    = 1024
	chunkOverlap = 150
)

// chunkText splits text into overlapping rune windows. The last chunk may be
// shorter; empty input yields no chunks.
func chunkText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

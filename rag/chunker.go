package rag

import "strings"

// DefaultChunkSize is the passage window width in characters.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is how many characters consecutive passages share.
const DefaultChunkOverlap = 200

// SplitText collapses whitespace runs to single spaces, trims, then slides a
// chunkSize-character window over the text advancing chunkSize-overlap each
// step. Sizing is character-based, not token-based: window boundaries may
// split words, which is acceptable because each full chunk is embedded as a
// unit. Empty or whitespace-only text yields nil; callers must treat that as
// a fatal ingestion condition, not a success.
//
// overlap < chunkSize is a configuration precondition checked at startup,
// not here.
func SplitText(text string, chunkSize, overlap int) []string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return nil
	}

	runes := []rune(clean)
	step := chunkSize - overlap

	var chunks []string
	for i := 0; i == 0 || i+overlap < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

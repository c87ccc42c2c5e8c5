package model

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// EmbedTokenLimit is the sequence length of the default embedding model.
// Chunks past this are truncated silently inside the model, so ingestion
// logs any chunk that crosses it.
const EmbedTokenLimit = 512

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens returns the token count of text under a GPT-compatible BPE.
// The exact tokenizer differs from the embedding model's, but it is close
// enough for oversize warnings and prompt size logging.
func CountTokens(text string) (int, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.EncodingForModel("gpt-3.5-turbo")
	})
	if encErr != nil {
		return 0, encErr
	}
	return len(enc.Encode(text, nil, nil)), nil
}

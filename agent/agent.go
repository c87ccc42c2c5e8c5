// Package agent turns a retrieved context window and a question into a
// grounded answer through a single LLM call.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"corpmind/model"
)

// Fixed user-facing messages. The first two are returned without any model
// call: with no grounding there is nothing to generate, and skipping the
// call avoids both the latency and a hallucinated answer.
const (
	NoDocumentsMessage = "I don't see any documents in this workspace yet. Please upload a PDF, DOCX, or TXT file so I can answer your questions based on them."
	NoAnswerMessage    = "Unfortunately, I did not find enough information in your documents to answer this question."
	ApologyMessage     = "Sorry, an error occurred while processing the request."
)

const systemPrompt = `You are an intelligent expert assistant named "CorpMind".
Your task is to answer the user's question accurately using ONLY the provided context.
Context information is extracted from the user's uploaded documents.
Instructions:
1. Analyze the context thoroughly.
2. If the context contains the answer, explain it clearly.
3. Use formatting (bullet points, bold text).
4. If the context has absolutely no relevance to the question, politely state that you cannot find the answer in the documents.`

const DefaultTimeout = 120 * time.Second

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generator calls an Ollama-compatible /api/generate endpoint.
type Generator struct {
	url    string
	model  string
	client *http.Client
	logger *slog.Logger
}

func NewGenerator(url, llmModel string, timeout time.Duration) *Generator {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Generator{
		url:    url,
		model:  llmModel,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "agent"),
	}
}

// Answer produces a grounded answer from the context window. It never
// returns an error: a failed model call becomes the fixed apology, because a
// chat turn must not hard-fail the request or corrupt the conversation log.
func (g *Generator) Answer(ctx context.Context, question, contextText string) string {
	prompt := fmt.Sprintf(`Context:
%s

User Question:
%s`, contextText, question)

	if n, err := model.CountTokens(systemPrompt + prompt); err == nil {
		g.logger.Info("[CHAT] prompt built", "tokens", n, "chars", len(prompt))
	}

	answer, err := g.generate(ctx, prompt)
	if err != nil {
		g.logger.Error("[CHAT] generation failed", "err", err)
		return ApologyMessage
	}
	return answer
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		g.logger.Info("[CHAT] LLM call finished", "took", time.Since(start))
	}()

	reqBody, err := json.Marshal(generateRequest{
		Model:  g.model,
		System: systemPrompt,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("LLM API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if genResp.Response == "" {
		return "", fmt.Errorf("LLM returned empty response")
	}
	return genResp.Response, nil
}

package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerReturnsModelResponse(t *testing.T) {
	var gotReq struct {
		Model  string `json:"model"`
		System string `json:"system"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"response": "The contract expires in 2027."})
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "llama3.2", time.Second)
	answer := g.Answer(context.Background(), "When does the contract expire?", "contract context here")

	assert.Equal(t, "The contract expires in 2027.", answer)
	assert.Equal(t, "llama3.2", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Contains(t, gotReq.Prompt, "contract context here")
	assert.Contains(t, gotReq.Prompt, "When does the contract expire?")
	assert.Contains(t, gotReq.System, "ONLY the provided context")
}

func TestAnswerServerErrorBecomesApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "llama3.2", time.Second)
	assert.Equal(t, ApologyMessage, g.Answer(context.Background(), "q", "ctx"))
}

func TestAnswerUnreachableServerBecomesApology(t *testing.T) {
	g := NewGenerator("http://127.0.0.1:1", "llama3.2", 100*time.Millisecond)
	assert.Equal(t, ApologyMessage, g.Answer(context.Background(), "q", "ctx"))
}

func TestAnswerEmptyResponseBecomesApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": ""})
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "llama3.2", time.Second)
	assert.Equal(t, ApologyMessage, g.Answer(context.Background(), "q", "ctx"))
}

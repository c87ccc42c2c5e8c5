package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/tags and /api/embeddings, returning a vector that
// encodes the prompt length so tests can verify ordering.
func fakeOllama(t *testing.T, dims int, loadCount *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			loadCount.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/api/embeddings":
			var req struct {
				Prompt string `json:"prompt"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vec := make([]float64, dims)
			vec[0] = float64(len(req.Prompt))
			vec[1] = 1
			json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestEmbedder(t *testing.T, url string, dims int) *Embedder {
	t.Helper()
	e, err := NewEmbedder(EmbedderConfig{
		BaseURL:    url,
		Model:      "test-model",
		Dimensions: dims,
		Workers:    4,
		Timeout:    time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e
}

func TestEmbedProducesNormalizedVector(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 8)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 8)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5, "output must be unit length")
}

func TestEmbedLazyInitRunsOnce(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Embed(context.Background(), "concurrent first call")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load(), "model load must run exactly once")
}

func TestEmbedInitRetriesAfterCanceledFirstCall(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, "first")
	require.Error(t, err, "canceled context must fail this request")

	// The aborted probe fails only its own request: the next caller with a
	// healthy context loads the model and succeeds.
	vec, err := e.Embed(context.Background(), "second")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, int32(1), loads.Load())
}

func TestEmbedInitRetriesAfterServerRecovers(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	srv.Close()

	e := newTestEmbedder(t, srv.URL, 8)

	_, err := e.Embed(context.Background(), "while down")
	require.Error(t, err)

	recovered := fakeOllama(t, 8, &loads)
	defer recovered.Close()
	e.ollama.baseURL = recovered.URL

	vec, err := e.Embed(context.Background(), "after restart")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestEmbedDimensionMismatchFailsInit(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 16)

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")

	// The failure is memoized, not retried per call.
	_, err2 := e.Embed(context.Background(), "hello again")
	assert.Equal(t, err.Error(), err2.Error())
	assert.Equal(t, int32(1), loads.Load())
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 8)

	// Prompts of strictly increasing length: vec[0] preserves the ranking
	// even after normalization, since vec[1] is the only other component.
	texts := []string{"a", "ab", "abc", "abcd", "abcde", "abcdef", "abcdefg", "abcdefgh"}
	out, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, len(texts))

	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i][0], out[i-1][0],
			"slot %d must hold the vector for texts[%d] regardless of completion order", i, i)
	}
}

func TestEmbedBatchCanceledContext(t *testing.T) {
	var loads atomic.Int32
	srv := fakeOllama(t, 8, &loads)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 8)
	// Warm up so init does not consume the cancellation.
	_, err := e.Embed(context.Background(), "warm")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.EmbedBatch(ctx, []string{"a", "b", "c"})
	assert.Error(t, err)
}

func TestNewEmbedderRejectsBadDimension(t *testing.T) {
	_, err := NewEmbedder(EmbedderConfig{Dimensions: 0})
	assert.Error(t, err)
}

package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// EmbedderInterface is what the ingestion and retrieval paths consume.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type EmbedderConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
	Workers    int
	Timeout    time.Duration
}

// Embedder talks to an Ollama embedding model. The remote model is loaded
// lazily: the first Embed/EmbedBatch call probes the server (which pulls the
// model into memory, potentially seconds) and verifies the configured vector
// dimension. Concurrent first callers serialize on the init mutex, so at
// most one probe is in flight at a time.
type Embedder struct {
	ollama *ollamaClient
	dims   int
	pool   *ants.Pool
	logger *slog.Logger

	initMu   sync.Mutex
	ready    bool
	fatalErr error
}

const (
	DefaultEmbedTimeout = 30 * time.Second
	DefaultEmbedWorkers = 4
)

func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedder: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultEmbedTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultEmbedWorkers
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("embedder: create worker pool: %w", err)
	}

	return &Embedder{
		ollama: newOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout),
		dims:   cfg.Dimensions,
		pool:   pool,
		logger: slog.Default().With("component", "embedder"),
	}, nil
}

// Dimensions returns the vector size every Embed call produces. It is fixed
// for the process lifetime; switching models means re-embedding every
// existing collection.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// ensureReady runs the model load check before the first real embedding.
// A transient failure (server down, caller deadline hit during the probe)
// fails only that request; the next caller retries the load. Only a
// dimension mismatch is memoized, since it means misconfiguration and
// cannot heal until the process restarts with a matching config.
func (e *Embedder) ensureReady(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ready {
		return nil
	}
	if e.fatalErr != nil {
		return e.fatalErr
	}

	start := time.Now()
	e.logger.Info("loading embedding model", "model", e.ollama.model)

	if err := e.ollama.Ping(ctx); err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}

	// First real inference pulls the model into server memory and tells
	// us the true output dimension.
	vec, err := e.ollama.Embed(ctx, "warmup")
	if err != nil {
		return fmt.Errorf("embedding model load: %w", err)
	}
	if len(vec) != e.dims {
		e.fatalErr = fmt.Errorf("embedding model %s produces %d dimensions, configured %d",
			e.ollama.model, len(vec), e.dims)
		return e.fatalErr
	}

	e.ready = true
	e.logger.Info("embedding model loaded", "model", e.ollama.model, "dimensions", e.dims, "took", time.Since(start))
	return nil
}

// Embed produces the L2-normalized vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}
	return e.ollama.Embed(ctx, text)
}

// EmbedBatch embeds texts on the worker pool. Result slot i always holds the
// vector for texts[i] regardless of completion order, so chunk ids derived
// from the slice index stay stable.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, text := range texts {
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			vec, err := e.ollama.Embed(ctx, text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embed text %d: %w", i, err)
				}
				mu.Unlock()
				return
			}
			out[i] = vec
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("submit embed task: %w", submitErr)
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Release frees the worker pool.
func (e *Embedder) Release() {
	e.pool.Release()
}

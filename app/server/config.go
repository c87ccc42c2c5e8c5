package server

import (
	"fmt"
	"os"
	"strconv"

	"corpmind/rag"
)

type Config struct {
	ListenAddr string

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	EmbeddingURL   string
	EmbeddingModel string
	EmbeddingDim   int
	EmbedWorkers   int

	LLMURL   string
	LLMModel string

	UploadDir    string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// LoadConfig reads the environment. Chunking geometry is validated here once
// so the pipeline never needs a runtime check.
func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr:     envOr("SERVER_ADDR", ":3000"),
		PGHost:         envOr("PG_HOST", "localhost"),
		PGPort:         envIntOr("PG_PORT", 5432),
		PGUser:         os.Getenv("PG_USER"),
		PGPass:         os.Getenv("PG_PASS"),
		PGDBName:       os.Getenv("PG_DB_NAME"),
		EmbeddingURL:   envOr("OLLAMA_EMBEDDING_URL", "http://localhost:11434"),
		EmbeddingModel: envOr("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:   envIntOr("EMBEDDING_DIM", 768),
		EmbedWorkers:   envIntOr("EMBED_WORKERS", 4),
		LLMURL:         envOr("LLM_URL", "http://localhost:11434/api/generate"),
		LLMModel:       envOr("LLM_MODEL", "llama3.2"),
		UploadDir:      envOr("UPLOAD_DIR", "uploads"),
		ChunkSize:      envIntOr("CHUNK_SIZE", rag.DefaultChunkSize),
		ChunkOverlap:   envIntOr("CHUNK_OVERLAP", rag.DefaultChunkOverlap),
		TopK:           envIntOr("RETRIEVAL_TOP_K", rag.DefaultTopK),
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be strictly less than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", cfg.EmbeddingDim)
	}
	return cfg, nil
}

func (c Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

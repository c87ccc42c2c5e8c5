package server

import (
	"context"
	"log"
	"log/slog"

	"corpmind/agent"
	"corpmind/app/api"
	"corpmind/chat"
	"corpmind/model"
	"corpmind/rag"
	"corpmind/store"
	"corpmind/vectorstore"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    api.MaxUploadSize + 1024*1024,
}

type Server struct {
	cfg    Config
	logger *slog.Logger
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	pgStore, err := store.NewPostgresStore(ctx, s.cfg.ConnString())
	if err != nil {
		log.Fatal("error to connect to Postgres database ", err)
	}
	if err := pgStore.Init(ctx); err != nil {
		log.Fatal("error to create tables ", err)
	}

	index, err := vectorstore.NewIndex(pgStore.Pool(), s.cfg.EmbeddingDim)
	if err != nil {
		log.Fatal("error to create vector index ", err)
	}
	if err := index.Init(ctx); err != nil {
		log.Fatal("error to init pgvector extension ", err)
	}

	blobs, err := store.NewDiskBlobStore(s.cfg.UploadDir)
	if err != nil {
		log.Fatal("error to create blob store ", err)
	}

	embedder, err := model.NewEmbedder(model.EmbedderConfig{
		BaseURL:    s.cfg.EmbeddingURL,
		Model:      s.cfg.EmbeddingModel,
		Dimensions: s.cfg.EmbeddingDim,
		Workers:    s.cfg.EmbedWorkers,
	})
	if err != nil {
		log.Fatal("error to create embedder ", err)
	}

	var (
		extractor = rag.NewExtractor()
		ingestor  = rag.NewIngestor(pgStore, blobs, index, embedder, extractor, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
		deleter   = rag.NewDeleter(pgStore, blobs, index)
		retriever = rag.NewRetriever(embedder, index, s.cfg.TopK)
		generator = agent.NewGenerator(s.cfg.LLMURL, s.cfg.LLMModel, 0)
		chatSvc   = chat.NewService(pgStore, retriever, generator)

		app          = fiber.New(config)
		checkHandler = api.NewCheckHandler()
		fileHandler  = api.NewFileHandler(ingestor, deleter, pgStore)
		chatHandler  = api.NewChatHandler(chatSvc)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	ws := apiv1.Group("/workspaces/:id")
	ws.Post("/documents", fileHandler.HandleUpload)
	ws.Get("/documents", fileHandler.HandleList)
	ws.Delete("/documents/:docID", fileHandler.HandleDelete)
	ws.Delete("/", fileHandler.HandleDeleteWorkspace)
	ws.Post("/messages", chatHandler.HandleSend)
	ws.Get("/messages", chatHandler.HandleHistory)

	if err := app.Listen(s.cfg.ListenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soulink/companion-backend/internal/ai"
	"github.com/soulink/companion-backend/internal/chat"
	"github.com/soulink/companion-backend/internal/companion"
	"github.com/soulink/companion-backend/internal/config"
	"github.com/soulink/companion-backend/internal/db"
	"github.com/soulink/companion-backend/internal/httpapi"
	"github.com/soulink/companion-backend/internal/httpapi/handlers"
	"github.com/soulink/companion-backend/internal/knowledge"
	"github.com/soulink/companion-backend/internal/store/rabbitmq"
	"github.com/soulink/companion-backend/internal/store/redisstore"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	cache := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := cache.Ping(context.Background()); err != nil {
		slog.Warn("redis unreachable at startup, session memory will fail open", "error", err)
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitIngestQueue)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	llm := ai.NewService(ai.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: float32(cfg.LLMTemperature),
	})
	embedder := ai.NewEmbeddingService(ai.EmbeddingConfig{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	})

	index := knowledge.NewIndex(gdb)
	fileRepo := knowledge.NewFileRepo(gdb)
	retriever := knowledge.NewRetriever(embedder, index, cfg.RetrievalTopK)

	chatRepo := chat.NewRepo(gdb)
	memory := chat.NewMemoryStore(cache, cfg.MemoryWindow, time.Duration(cfg.MemoryTTLDays)*24*time.Hour)
	classifier := chat.NewClassifier(llm.WithTemperature(0.1))

	companionRepo := companion.NewRepo(gdb)
	companions := companion.NewService(companionRepo, index, memory)

	orchestrator := chat.NewOrchestrator(
		companionRepo,
		chatRepo,
		memory,
		classifier,
		retriever,
		llm,
		cfg.ConfidenceGate,
	)

	h := handlers.NewHandler(gdb, cfg, companions, chatRepo, orchestrator, fileRepo, publisher)
	router := httpapi.NewRouter(cfg, h)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	_ = cache.Close()
}

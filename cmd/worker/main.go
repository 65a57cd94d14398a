package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/soulink/companion-backend/internal/ai"
	"github.com/soulink/companion-backend/internal/config"
	"github.com/soulink/companion-backend/internal/db"
	"github.com/soulink/companion-backend/internal/knowledge"
	"github.com/soulink/companion-backend/internal/store/rabbitmq"
)

const (
	maxAttempts = 3
	retryTTL    = 15 * time.Second
	taskTimeout = 10 * time.Minute
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	concurrency := 2
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			concurrency = n
		}
	}

	gdb := db.Connect(cfg.DBDSN)

	embedder := ai.NewEmbeddingService(ai.EmbeddingConfig{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	})
	index := knowledge.NewIndex(gdb)
	svc := knowledge.NewService(knowledge.NewFileRepo(gdb), index, embedder)

	// Publisher declares the main/retry/dlq topology on connect; the worker
	// reuses that side effect and just consumes.
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitIngestQueue)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		slog.Error("failed to open channel", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		slog.Error("failed to set qos", "error", err)
		os.Exit(1)
	}

	deliveries, err := ch.Consume(
		cfg.RabbitIngestQueue,
		"knowledge-worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		slog.Error("failed to start consuming", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker started", "queue", cfg.RabbitIngestQueue, "concurrency", concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					handleDelivery(ctx, ch, cfg.RabbitIngestQueue, svc, d)
				}
			}
		}(i)
	}

	<-ctx.Done()
	slog.Info("worker shutting down")
	_ = ch.Close()
	wg.Wait()
}

func handleDelivery(ctx context.Context, ch *amqp.Channel, queue string, svc *knowledge.Service, d amqp.Delivery) {
	var task rabbitmq.TaskMessage
	if err := json.Unmarshal(d.Body, &task); err != nil {
		slog.Error("malformed task, dropping to dlq", "error", err)
		_ = d.Nack(false, false)
		return
	}

	tctx, cancel := context.WithTimeout(ctx, taskTimeout)
	err := dispatch(tctx, svc, task)
	cancel()

	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := attemptCount(d.Headers)
	slog.Error("task failed", "kind", task.Kind, "file_id", task.FileID,
		"companion_id", task.CompanionID, "attempt", attempt, "error", err)

	if attempt >= maxAttempts {
		// nack without requeue dead-letters to the dlq
		_ = d.Nack(false, false)
		return
	}

	// park on the retry queue; its TTL dead-letters back to the main queue
	headers := amqp.Table{"x-attempt": int32(attempt + 1)}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers:      headers,
		Expiration:   fmt.Sprintf("%d", retryTTL.Milliseconds()),
	}
	if perr := ch.PublishWithContext(ctx, "", queue+".retry", false, false, pub); perr != nil {
		slog.Error("failed to schedule retry", "error", perr)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func dispatch(ctx context.Context, svc *knowledge.Service, task rabbitmq.TaskMessage) error {
	switch task.Kind {
	case rabbitmq.TaskIngestFile:
		return svc.IngestFile(ctx, task.FileID)
	case rabbitmq.TaskCleanupFile:
		return svc.CleanupFile(ctx, task.FileID)
	case rabbitmq.TaskCleanupCompanion:
		return svc.CleanupCompanion(ctx, task.CompanionID)
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

func attemptCount(headers amqp.Table) int {
	if headers == nil {
		return 1
	}
	switch v := headers["x-attempt"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

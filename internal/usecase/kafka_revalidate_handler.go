package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"QullaScan/internal/domain/models"
	domrepo "QullaScan/internal/domain/repository"
	"QullaScan/internal/service/universe"
	pkgkafka "QullaScan/pkg/kafka"
	"QullaScan/pkg/logger"
)

// maxRevalidateSymbols caps one external request.
const maxRevalidateSymbols = 500

// KafkaRevalidateHandler turns revalidate requests from Kafka into queued
// background work.
type KafkaRevalidateHandler struct {
	topic   string
	sched   Scheduler
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewKafkaRevalidateHandler(topic string, sched Scheduler, metrics domrepo.Metrics, log *logger.Logger) *KafkaRevalidateHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &KafkaRevalidateHandler{topic: topic, sched: sched, metrics: metrics, log: log.With("kafka-revalidate")}
}

func (h *KafkaRevalidateHandler) Topic() string { return h.topic }

// incoming message schema: {"symbols": ["AAPL", ...], "reason": "..."}
func (h *KafkaRevalidateHandler) Handle(ctx context.Context, b []byte) error {
	var req models.RevalidateRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode revalidate request: %w", err)
	}

	symbols := universe.Normalize(req.Symbols)
	if len(symbols) == 0 {
		return nil
	}
	if len(symbols) > maxRevalidateSymbols {
		h.log.Warn("revalidate request truncated",
			logger.Int("requested", len(symbols)),
			logger.Int("max", maxRevalidateSymbols))
		symbols = symbols[:maxRevalidateSymbols]
	}

	reason := req.Reason
	if reason == "" {
		reason = "kafka"
	}
	// A dropped request is not retried; the queue being full is the signal.
	if !h.sched.Schedule(ctx, symbols, reason) {
		h.metrics.RecordError("consumer_schedule")
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRevalidateHandler)(nil)

package service

import (
	"context"

	"QullaScan/internal/domain/models"
)

// Evaluator turns a symbol into a scored record.
type Evaluator interface {
	// Benchmark returns the reference performance used for RS ratings.
	Benchmark(ctx context.Context) (models.Performance, error)
	// Evaluate computes one enriched record. A nil bench yields the neutral
	// RS rating.
	Evaluate(ctx context.Context, symbol string, bench *models.Performance) (*models.SymbolRecord, error)
	// EvaluateBatch computes records for symbols, returning them in input
	// order together with the symbols that could not be scored.
	EvaluateBatch(ctx context.Context, symbols []string, bench *models.Performance) ([]*models.SymbolRecord, []string)
}

package swr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Entry wraps a cached value with the time it was written and a digest of
// its content. Equal digests mean the data did not change, whatever the
// timestamps say.
type Entry[T any] struct {
	Data     T      `json:"data"`
	CachedAt int64  `json:"cachedAt"` // unix millis
	DataHash string `json:"dataHash"`
}

// CachedTime returns CachedAt as a time.Time.
func (e *Entry[T]) CachedTime() time.Time {
	return time.UnixMilli(e.CachedAt)
}

// NewEntry stamps value with at and its digest.
func NewEntry[T any](value T, at time.Time) (*Entry[T], error) {
	h, err := Digest(value)
	if err != nil {
		return nil, err
	}
	return &Entry[T]{Data: value, CachedAt: at.UnixMilli(), DataHash: h}, nil
}

// Digest is the hex SHA-256 of the JSON encoding of v. encoding/json sorts
// map keys and keeps struct field order, so the result is deterministic.
func Digest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

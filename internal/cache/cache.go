// Package cache stores computed embedding vectors so unchanged entity text is
// not re-embedded on every ingest.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Cache maps a key to an embedding vector. A miss returns (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
	Close() error
}

// EmbeddingKey generates a standardized cache key
// Format: "emb:<model>:<sha256(text)>"
func EmbeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

// Nop never hits and discards writes
type Nop struct{}

func (Nop) Get(context.Context, string) ([]float32, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []float32) error          { return nil }
func (Nop) Close() error                                          { return nil }

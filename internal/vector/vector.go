// Package vector defines the vector store consumed by the embedding
// pipeline and provides a SQLite-backed implementation.
package vector

import (
	"context"
	"encoding/binary"
	"math"
)

// Metadata travels with a stored vector and is returned on search hits.
type Metadata struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Model string `json:"model"`
}

// Match is one nearest-neighbour result.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Store is the vector store contract. Upsert and Delete are idempotent:
// re-upserting an id overwrites, deleting a missing id is a no-op.
type Store interface {
	Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, vec []float32, k int) ([]Match, error)
}

// Pack encodes a float32 vector as little-endian bytes.
func Pack(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Unpack decodes little-endian bytes into a float32 vector.
func Unpack(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// Cosine computes the cosine similarity between two vectors. Mismatched
// lengths and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Package embedding turns entity text into vectors. The model itself is
// opaque to the rest of the engine.
package embedding

import "context"

// Embedder is the contract consumed by the pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

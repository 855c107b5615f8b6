package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ Embedder = (*OpenAI)(nil)

// EmbeddingsService is the slice of the OpenAI client the embedder needs,
// abstracted so tests can run without the real API.
type EmbeddingsService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// OpenAI generates embeddings through the OpenAI API.
type OpenAI struct {
	embeddings EmbeddingsService
	model      openai.EmbeddingModel
}

// NewOpenAI creates an OpenAI embedder for the given model.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		embeddings: client.Embeddings,
		model:      openai.EmbeddingModel(model),
	}
}

// Embed generates an embedding for text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](
			openai.EmbeddingNewParamsInputArrayOfStrings([]string{text}),
		),
		Model: openai.F(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding generation failed: no data returned")
	}

	out := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// ModelName returns the embedding model name.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

package embedding

import (
	"context"
	"errors"
)

var (
	// ErrModelUnavailable is returned when a provider cannot serve its model.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrDimensionMismatch is returned when a model returns a vector of
	// unexpected length.
	ErrDimensionMismatch = errors.New("unexpected embedding dimensions")
)

// Provider generates embeddings from text with a specific model.
type Provider interface {
	// Load prepares the model. It is called once before the first Embed and
	// again after a failed attempt.
	Load(ctx context.Context) error

	// Embed generates a unit-length embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}

// Package embedding turns query text into vectors comparable with the
// embeddings stored in the search index.
package embedding

import "math"

// DefaultDimensions is the vector length of the all-MiniLM-L6-v2 family
// used to build the index.
const DefaultDimensions = 384

// Source tells where a query vector came from.
type Source int

const (
	// SourceNone means no vector was computed (keyword mode).
	SourceNone Source = iota
	// SourceModel means the vector was produced by the embedding model.
	SourceModel
	// SourceFallback means the hashed fallback embedding was used.
	SourceFallback
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Embedding is a query vector tagged with its source.
type Embedding struct {
	Vector []float32
	Source Source
}

// normalize scales v to unit length in place. Zero vectors are left as-is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

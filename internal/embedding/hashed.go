package embedding

import (
	"math"

	"github.com/sha1n/mcp-docsearch-server/internal/tokenizer"
)

// Fallback returns the hashed embedding of text tagged as a fallback.
func Fallback(text string, dims int) Embedding {
	return Embedding{Vector: HashedEmbedding(text, dims), Source: SourceFallback}
}

// HashedEmbedding builds a deterministic bag-of-tokens vector of length dims
// from a 32-bit string hash of each token. The result is unit length, or all
// zeros when text has no tokens. A dims of zero or less means DefaultDimensions.
func HashedEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDimensions
	}

	tokens := tokenizer.Tokenize(text)
	acc := make([]float64, dims)

	if len(tokens) > 0 {
		weight := 1 / float64(len(tokens))
		for _, tok := range tokens {
			h := int64(hashToken(tok))
			if h < 0 {
				h = -h
			}
			for i := 0; i < dims; i++ {
				acc[(h+int64(i)*31)%int64(dims)] += weight
			}
		}
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	magnitude := math.Sqrt(sum)

	vec := make([]float32, dims)
	for i, v := range acc {
		if magnitude > 0 {
			v /= magnitude
		}
		vec[i] = float32(v)
	}
	return vec
}

// hashToken is the classic h*31+c string hash with 32-bit wraparound.
// Tokens are ASCII, so bytes and characters coincide.
func hashToken(tok string) int32 {
	var h int32
	for i := 0; i < len(tok); i++ {
		h = (h << 5) - h + int32(tok[i])
	}
	return h
}

package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DefaultDim is the vector width used when no dimension is configured.
const DefaultDim = 256

// Embedder turns texts into unit-length vectors of a fixed width.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dim() int
}

// HashEmbedder is a deterministic bag-of-tokens embedding. Each token lands in a bucket chosen
// by its SHA-256 digest with a signed magnitude in [1, 2]; the sum is L2 normalized.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder of width dim (DefaultDim when dim <= 0).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dim() int { return h.dim }

// Embed never fails.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = h.embedOne(t)
	}
	return out, nil
}

func (h *HashEmbedder) embedOne(text string) []float64 {
	vec := make([]float64, h.dim)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec
	}
	for _, tok := range tokens {
		digest := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(digest[:4]) % uint32(h.dim)
		sign := 1.0
		if digest[4]%2 == 1 {
			sign = -1.0
		}
		vec[idx] += sign * (1.0 + float64(digest[5])/255.0)
	}
	return normalize(vec)
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine is the dot product of two unit vectors. Empty or mismatched vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// NewEmbedder selects the embedding variant named in configuration.
func NewEmbedder(provider string, dim int) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "mock":
		return NewHashEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q (supported: mock)", provider)
	}
}

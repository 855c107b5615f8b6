package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

var _ Embedder = (*Local)(nil)

// Local is a deterministic offline embedder: tokens are hashed into a
// fixed-dimension bag-of-words vector, L2-normalized. Identical text always
// produces an identical vector, which is what the engine's consistency
// properties need; semantic quality is whatever hashing gives you. Used
// when no API key is configured, and throughout the test suite.
type Local struct {
	dims int
}

// NewLocal creates a Local embedder with the given dimension count.
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = 256
	}
	return &Local{dims: dims}
}

// Embed hashes whitespace-separated tokens into the vector.
func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(l.dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

// ModelName identifies the hashing embedder and its dimensionality.
func (l *Local) ModelName() string {
	return "local-hash-v1"
}

package knowledge

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// embeddingDim matches the dimensionality the scoring pipeline was
// tuned against.
const embeddingDim = 384

// Embedder converts text into a dense vector for cosine scoring. The
// default implementation is deterministic; a model-backed one can be
// substituted without touching the retrieval pipeline.
type Embedder interface {
	Embed(text string) []float32
}

// HashEmbedder produces feature-hashed bag-of-words vectors: each token
// is hashed to a dimension, counts accumulate, and the result is
// L2-normalized. Identical text always yields an identical vector.
type HashEmbedder struct{}

// NewHashEmbedder returns the default deterministic embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// Embed hashes the text's tokens into a fixed-dimension unit vector.
func (e *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		idx := sum % embeddingDim
		// The next hash bit gives the sign, which keeps unrelated
		// token collisions from always reinforcing each other.
		if (sum>>16)&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	normalize(vec)
	return vec
}

// tokenize lowercases and splits on non-alphanumeric runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize scales the vector to unit length in place.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// cosine returns the cosine similarity of two vectors. Mismatched
// lengths score zero.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

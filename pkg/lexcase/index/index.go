// Package index defines the vector index capability that chunks are
// handed to, and the embedders that turn text into vectors.
package index

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Result is one similarity search hit.
type Result struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// Index stores texts with metadata and answers similarity queries.
// A filter keeps only results whose metadata has every key/value pair.
// Delete ignores unknown ids.
type Index interface {
	AddTexts(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error)
	SimilaritySearch(ctx context.Context, query string, k int, filter map[string]string) ([]Result, error)
	Delete(ctx context.Context, ids []string) error
}

// Embedder turns text into a fixed-width vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// DefaultDimensions is the width of the HashEmbedder when none is set.
const DefaultDimensions = 256

// HashEmbedder is a deterministic local embedder. Han characters
// contribute unigrams and bigrams, other scripts whole lowercase words,
// each hashed into a bucket. Vectors are L2-normalized.
type HashEmbedder struct {
	Dims int
}

var _ Embedder = HashEmbedder{}

// Dimensions returns the vector width.
func (h HashEmbedder) Dimensions() int {
	if h.Dims <= 0 {
		return DefaultDimensions
	}
	return h.Dims
}

// Embed never fails.
func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dimensions())
	for _, f := range features(text) {
		hs := fnv.New32a()
		hs.Write([]byte(f))
		vec[hs.Sum32()%uint32(len(vec))]++
	}
	normalize(vec)
	return vec, nil
}

func features(text string) []string {
	var (
		out  []string
		word strings.Builder
		prev rune
	)
	flush := func() {
		if word.Len() > 0 {
			out = append(out, strings.ToLower(word.String()))
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			out = append(out, string(r))
			if prev != 0 {
				out = append(out, string([]rune{prev, r}))
			}
			prev = r
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
		prev = 0
	}
	flush()
	return out
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is
// a zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Matches reports whether meta carries every pair in filter.
func Matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if got, ok := meta[k]; !ok || got != v {
			return false
		}
	}
	return true
}

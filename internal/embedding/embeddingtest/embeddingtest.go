// Package embeddingtest provides a deterministic offline embedder for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// BagOfWords hashes lowercase words into a fixed number of buckets and
// normalizes the counts, so texts sharing words are close in cosine space.
type BagOfWords struct {
	Dims  int
	Err   error
	calls atomic.Int32
}

// Embed embeds texts or returns Err when it is set.
func (b *BagOfWords) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.calls.Add(1)
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.vector(t)
	}
	return out, nil
}

// Dimensions returns Dims, defaulting to 64.
func (b *BagOfWords) Dimensions() int {
	if b.Dims <= 0 {
		return 64
	}
	return b.Dims
}

// Calls reports how many batches were embedded.
func (b *BagOfWords) Calls() int { return int(b.calls.Load()) }

func (b *BagOfWords) vector(text string) []float32 {
	v := make([]float32, b.Dimensions())
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32()%uint32(len(v)))]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

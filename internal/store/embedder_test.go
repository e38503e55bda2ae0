package store

import (
	"context"
	"hash/fnv"
	"math"
)

// fakeEmbedder is a deterministic, hash-based test double: each text maps
// to a fixed pseudo-random unit vector, so semantically unrelated texts
// land far apart and identical texts always collide — useful for
// asserting nearest-neighbor ordering without a real model.
type fakeEmbedder struct {
	dims int
}

func newFakeEmbedder(dims int) *fakeEmbedder { return &fakeEmbedder{dims: dims} }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dims)
	seed := fnv.New64a()
	seed.Write([]byte(text))
	state := seed.Sum64()
	var sumSquares float64
	for i := range v {
		state = state*6364136223846793005 + 1442695040888963407
		val := float64(int64(state>>11)) / float64(1<<52)
		v[i] = float32(val)
		sumSquares += val * val
	}
	mag := math.Sqrt(sumSquares)
	if mag == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
	return v
}

func (f *fakeEmbedder) Dimensions() int                  { return f.dims }
func (f *fakeEmbedder) ModelName() string                { return "fake-test-embedder" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                     { return nil }
func (f *fakeEmbedder) SetBatchIndex(_ int)               {}
func (f *fakeEmbedder) SetFinalBatch(_ bool)              {}

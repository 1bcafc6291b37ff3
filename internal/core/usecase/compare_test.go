package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/core/similarity"
)

func newCompareUC(provider *fakeProvider) *CompareImagesUseCase {
	engine := similarity.NewEngine(5, similarity.DefaultWeights())
	return NewCompareImagesUseCase(&fakeNormalizer{}, provider, engine, passRetryer{})
}

func TestCompareIdenticalEmbeddings(t *testing.T) {
	provider := &fakeProvider{
		embeddings: map[string]domain.Embedding{
			"left":  {Model: "m", Vector: []float32{1, 0}},
			"right": {Model: "m", Vector: []float32{1, 0}},
		},
	}
	uc := newCompareUC(provider)

	score, err := uc.Compare(context.Background(),
		domain.ImageAsset{Data: []byte("left")},
		domain.ImageAsset{Data: []byte("right")},
		domain.CompareOptions{},
	)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if math.Abs(score.Score-1.0) > 1e-9 {
		t.Fatalf("expected score 1.0, got %f", score.Score)
	}
}

func TestCompareOrthogonalEmbeddings(t *testing.T) {
	provider := &fakeProvider{
		embeddings: map[string]domain.Embedding{
			"left":  {Model: "m", Vector: []float32{1, 0}},
			"right": {Model: "m", Vector: []float32{0, 1}},
		},
	}
	uc := newCompareUC(provider)

	score, err := uc.Compare(context.Background(),
		domain.ImageAsset{Data: []byte("left")},
		domain.ImageAsset{Data: []byte("right")},
		domain.CompareOptions{},
	)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if math.Abs(score.Score) > 1e-9 {
		t.Fatalf("expected score 0.0, got %f", score.Score)
	}
	if math.Abs(score.Details.Structural) > 1e-9 {
		t.Fatalf("expected structural detail 0.0, got %f", score.Details.Structural)
	}
}

func TestCompareDimensionMismatch(t *testing.T) {
	provider := &fakeProvider{
		embeddings: map[string]domain.Embedding{
			"left":  {Model: "m", Vector: []float32{1, 0}},
			"right": {Model: "m", Vector: []float32{1, 0, 0}},
		},
	}
	uc := newCompareUC(provider)

	_, err := uc.Compare(context.Background(),
		domain.ImageAsset{Data: []byte("left")},
		domain.ImageAsset{Data: []byte("right")},
		domain.CompareOptions{},
	)
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestCompareUseFiltersAppliesConfiguredWeights(t *testing.T) {
	provider := &fakeProvider{
		embeddings: map[string]domain.Embedding{
			"left":  {Model: "m", Vector: []float32{1, 0}},
			"right": {Model: "m", Vector: []float32{1, 0}},
		},
	}
	// Structural-only configuration: useFilters must still produce the
	// plain cosine because no other method is weighted.
	engine := similarity.NewEngine(5, similarity.Weights{Structural: 2.0})
	uc := NewCompareImagesUseCase(&fakeNormalizer{}, provider, engine, passRetryer{})

	score, err := uc.Compare(context.Background(),
		domain.ImageAsset{Data: []byte("left")},
		domain.ImageAsset{Data: []byte("right")},
		domain.CompareOptions{UseFilters: true},
	)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if math.Abs(score.Score-1.0) > 1e-9 {
		t.Fatalf("expected score 1.0, got %f", score.Score)
	}
}

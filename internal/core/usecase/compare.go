package usecase

import (
	"context"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/core/ports"
	"github.com/akarpov/visearch/internal/core/similarity"
)

type CompareImagesUseCase struct {
	normalizer ports.Normalizer
	provider   ports.Provider
	engine     *similarity.Engine
	retry      ports.Retryer
}

func NewCompareImagesUseCase(
	normalizer ports.Normalizer,
	provider ports.Provider,
	engine *similarity.Engine,
	retry ports.Retryer,
) *CompareImagesUseCase {
	return &CompareImagesUseCase{
		normalizer: normalizer,
		provider:   provider,
		engine:     engine,
		retry:      retry,
	}
}

// Compare normalizes and embeds both uploads, then scores them. With
// UseFilters set the engine's configured perceptual/color weights join
// the structural method; otherwise the score is the plain cosine over
// embeddings. Method and Threshold in the options are advisory and do
// not change the computation.
func (uc *CompareImagesUseCase) Compare(ctx context.Context, a, b domain.ImageAsset, opts domain.CompareOptions) (domain.SimilarityScore, error) {
	imgA, err := uc.normalizer.Normalize(a, domain.PurposeEmbedding)
	if err != nil {
		return domain.SimilarityScore{}, err
	}
	imgB, err := uc.normalizer.Normalize(b, domain.PurposeEmbedding)
	if err != nil {
		return domain.SimilarityScore{}, err
	}

	embA, err := uc.embed(ctx, imgA)
	if err != nil {
		return domain.SimilarityScore{}, err
	}
	embB, err := uc.embed(ctx, imgB)
	if err != nil {
		return domain.SimilarityScore{}, err
	}

	weights := similarity.DefaultWeights()
	if opts.UseFilters {
		weights = uc.engine.Weights()
	}
	return uc.engine.Score(embA, embB, &imgA, &imgB, weights)
}

func (uc *CompareImagesUseCase) embed(ctx context.Context, img domain.NormalizedImage) (domain.Embedding, error) {
	var emb domain.Embedding
	err := uc.retry.Execute(ctx, "provider.embed", func(ctx context.Context) error {
		var callErr error
		emb, callErr = uc.provider.Embed(ctx, img)
		return callErr
	})
	return emb, err
}

package usecase

import (
	"context"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/core/ports"
)

type ClassifyImageUseCase struct {
	normalizer ports.Normalizer
	provider   ports.Provider
	retry      ports.Retryer
}

func NewClassifyImageUseCase(
	normalizer ports.Normalizer,
	provider ports.Provider,
	retry ports.Retryer,
) *ClassifyImageUseCase {
	return &ClassifyImageUseCase{
		normalizer: normalizer,
		provider:   provider,
		retry:      retry,
	}
}

func (uc *ClassifyImageUseCase) Classify(ctx context.Context, asset domain.ImageAsset) (domain.ClassificationResult, error) {
	img, err := uc.normalizer.Normalize(asset, domain.PurposeClassification)
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	var result domain.ClassificationResult
	err = uc.retry.Execute(ctx, "provider.classify", func(ctx context.Context) error {
		var callErr error
		result, callErr = uc.provider.Classify(ctx, img)
		return callErr
	})
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	return result, nil
}

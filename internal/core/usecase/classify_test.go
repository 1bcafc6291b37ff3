package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/akarpov/visearch/internal/core/domain"
)

func TestClassifySuccess(t *testing.T) {
	normalizer := &fakeNormalizer{}
	provider := &fakeProvider{
		classification: domain.ClassificationResult{Class: "a red bicycle", Confidence: 0.9},
	}
	uc := NewClassifyImageUseCase(normalizer, provider, passRetryer{})

	result, err := uc.Classify(context.Background(), domain.ImageAsset{Data: []byte("img")})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Class != "a red bicycle" {
		t.Fatalf("unexpected class %q", result.Class)
	}
	if len(normalizer.purposes) != 1 || normalizer.purposes[0] != domain.PurposeClassification {
		t.Fatalf("expected classification normalization, got %v", normalizer.purposes)
	}
}

func TestClassifyNormalizationFailure(t *testing.T) {
	normalizer := &fakeNormalizer{err: domain.WrapError(domain.ErrUnsupportedType, "normalize", errors.New("image/gif"))}
	uc := NewClassifyImageUseCase(normalizer, &fakeProvider{}, passRetryer{})

	_, err := uc.Classify(context.Background(), domain.ImageAsset{Data: []byte("img")})
	if !domain.IsKind(err, domain.ErrUnsupportedType) {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestClassifyProviderFailure(t *testing.T) {
	provider := &fakeProvider{
		classifyErr: domain.WrapError(domain.ErrProviderTimeout, "classify", errors.New("slow")),
	}
	uc := NewClassifyImageUseCase(&fakeNormalizer{}, provider, passRetryer{})

	_, err := uc.Classify(context.Background(), domain.ImageAsset{Data: []byte("img")})
	if !domain.IsKind(err, domain.ErrProviderTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

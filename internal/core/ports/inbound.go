package ports

import (
	"context"

	"github.com/akarpov/visearch/internal/core/domain"
)

// ImageUploader is the inbound contract for the upload flow.
type ImageUploader interface {
	Upload(ctx context.Context, asset domain.ImageAsset) (domain.CorpusEntry, error)
}

// ImageClassifier is the inbound contract for the classify flow.
type ImageClassifier interface {
	Classify(ctx context.Context, asset domain.ImageAsset) (domain.ClassificationResult, error)
}

// ImageComparer scores two uploads against each other.
type ImageComparer interface {
	Compare(ctx context.Context, a, b domain.ImageAsset, opts domain.CompareOptions) (domain.SimilarityScore, error)
}

// SimilarImageFinder ranks the stored corpus against a query upload.
type SimilarImageFinder interface {
	FindSimilar(ctx context.Context, asset domain.ImageAsset) (domain.SimilaritySearch, error)
}

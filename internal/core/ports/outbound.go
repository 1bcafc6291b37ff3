package ports

import (
	"context"

	"github.com/akarpov/visearch/internal/core/domain"
)

// Normalizer validates and transforms raw uploads into purpose-specific
// buffers. Pure: no side effects, deterministic per input and purpose.
type Normalizer interface {
	Normalize(asset domain.ImageAsset, purpose domain.ImagePurpose) (domain.NormalizedImage, error)
}

// Provider is the single choke-point for the remote AI service. A call is
// one attempt: the implementation performs no retries (retries cost real
// quota and are the orchestrator's decision) and mutates no local state
// on failure.
type Provider interface {
	Embed(ctx context.Context, img domain.NormalizedImage) (domain.Embedding, error)
	Classify(ctx context.Context, img domain.NormalizedImage) (domain.ClassificationResult, error)
}

// CorpusStore owns the persisted corpus: accepted images plus embedding
// sidecars. No other component touches the directory.
type CorpusStore interface {
	Put(ctx context.Context, img domain.NormalizedImage, filename string, emb domain.Embedding) (domain.CorpusEntry, error)
	Get(ctx context.Context, filename string) (domain.CorpusEntry, error)
	List(ctx context.Context) ([]domain.CorpusEntry, error)
	Delete(ctx context.Context, filename string) error

	// ReadImage returns the stored bytes of an entry, for re-embedding
	// entries whose sidecar is missing.
	ReadImage(ctx context.Context, filename string) ([]byte, error)
	// SaveEmbedding backfills the sidecar cache of an existing entry.
	SaveEmbedding(ctx context.Context, filename string, emb domain.Embedding) error
}

// EventPublisher announces accepted uploads to downstream consumers.
type EventPublisher interface {
	PublishImageStored(ctx context.Context, filename string) error
	Close()
}

// Retryer runs a provider call under the retry/breaker policy chosen at
// wiring time. The usecases decide WHERE retries apply; the policy
// decides HOW.
type Retryer interface {
	Execute(ctx context.Context, operation string, fn func(context.Context) error) error
}

package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/core/ports"
)

type UploadImageUseCase struct {
	normalizer ports.Normalizer
	provider   ports.Provider
	corpus     ports.CorpusStore
	events     ports.EventPublisher
	retry      ports.Retryer
}

func NewUploadImageUseCase(
	normalizer ports.Normalizer,
	provider ports.Provider,
	corpus ports.CorpusStore,
	events ports.EventPublisher,
	retry ports.Retryer,
) *UploadImageUseCase {
	return &UploadImageUseCase{
		normalizer: normalizer,
		provider:   provider,
		corpus:     corpus,
		events:     events,
		retry:      retry,
	}
}

// Upload runs validate -> normalize -> embed -> store. Terminal on the
// first failure: nothing is written to disk unless the embedding call
// succeeded, and nothing is announced unless the write succeeded.
func (uc *UploadImageUseCase) Upload(ctx context.Context, asset domain.ImageAsset) (domain.CorpusEntry, error) {
	img, err := uc.normalizer.Normalize(asset, domain.PurposeEmbedding)
	if err != nil {
		return domain.CorpusEntry{}, err
	}

	var emb domain.Embedding
	err = uc.retry.Execute(ctx, "provider.embed", func(ctx context.Context) error {
		var callErr error
		emb, callErr = uc.provider.Embed(ctx, img)
		return callErr
	})
	if err != nil {
		return domain.CorpusEntry{}, err
	}

	entry, err := uc.corpus.Put(ctx, img, storedFilename(img.Data), emb)
	if err != nil {
		return domain.CorpusEntry{}, err
	}

	// The entry is durable at this point; a dead event stream must not
	// fail the upload.
	if err := uc.events.PublishImageStored(ctx, entry.Filename); err != nil {
		slog.Warn("publish_image_stored_failed", "filename", entry.Filename, "error", err)
	}

	return entry, nil
}

// storedFilename keeps the chronological ordering of timestamp names
// while a content-hash suffix makes concurrent uploads collision-free.
func storedFilename(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%d_%s.jpg", time.Now().UnixMilli(), hex.EncodeToString(sum[:4]))
}

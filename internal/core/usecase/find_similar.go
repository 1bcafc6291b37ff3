package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/core/ports"
	"github.com/akarpov/visearch/internal/core/similarity"
)

type FindSimilarUseCase struct {
	normalizer  ports.Normalizer
	provider    ports.Provider
	corpus      ports.CorpusStore
	engine      *similarity.Engine
	retry       ports.Retryer
	concurrency int
}

func NewFindSimilarUseCase(
	normalizer ports.Normalizer,
	provider ports.Provider,
	corpus ports.CorpusStore,
	engine *similarity.Engine,
	retry ports.Retryer,
	concurrency int,
) *FindSimilarUseCase {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &FindSimilarUseCase{
		normalizer:  normalizer,
		provider:    provider,
		corpus:      corpus,
		engine:      engine,
		retry:       retry,
		concurrency: concurrency,
	}
}

// FindSimilar embeds the query, fills missing corpus embeddings (at
// most one provider call per entry, bounded fan-out), and ranks. A
// failing entry is excluded and named in the warnings, never aborting
// the whole search. The query's own stored copy is not excluded: an
// identical vector simply ranks first with score 1.
func (uc *FindSimilarUseCase) FindSimilar(ctx context.Context, asset domain.ImageAsset) (domain.SimilaritySearch, error) {
	img, err := uc.normalizer.Normalize(asset, domain.PurposeEmbedding)
	if err != nil {
		return domain.SimilaritySearch{}, err
	}

	var query domain.Embedding
	err = uc.retry.Execute(ctx, "provider.embed", func(ctx context.Context) error {
		var callErr error
		query, callErr = uc.provider.Embed(ctx, img)
		return callErr
	})
	if err != nil {
		return domain.SimilaritySearch{}, err
	}

	entries, err := uc.corpus.List(ctx)
	if err != nil {
		return domain.SimilaritySearch{}, err
	}

	entries, warnings := uc.fillMissingEmbeddings(ctx, entries)

	candidates := make([]similarity.Candidate, 0, len(entries))
	for _, entry := range entries {
		if !entry.HasEmbedding() {
			continue
		}
		if entry.Embedding.Model != query.Model || len(entry.Embedding.Vector) != len(query.Vector) {
			warnings = append(warnings, fmt.Sprintf("%s: embedding space mismatch", entry.Filename))
			continue
		}
		candidates = append(candidates, similarity.Candidate{
			Filename: entry.Filename,
			Path:     entry.Path,
			Vector:   entry.Embedding.Vector,
		})
	}

	return domain.SimilaritySearch{
		Matches:  uc.engine.Rank(query.Vector, candidates),
		Warnings: warnings,
	}, nil
}

// fillMissingEmbeddings embeds entries without a cached vector and
// backfills their sidecars. Per-entry failures become warnings.
func (uc *FindSimilarUseCase) fillMissingEmbeddings(ctx context.Context, entries []domain.CorpusEntry) ([]domain.CorpusEntry, []string) {
	var (
		mu       sync.Mutex
		warnings []string
	)

	g := new(errgroup.Group)
	g.SetLimit(uc.concurrency)

	for i := range entries {
		if entries[i].HasEmbedding() {
			continue
		}
		entry := &entries[i]

		g.Go(func() error {
			emb, err := uc.embedStored(ctx, entry.Filename)
			if err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("%s: embedding unavailable (%s)", entry.Filename, domain.KindLabel(err)))
				mu.Unlock()
				slog.Warn("corpus_embedding_failed", "filename", entry.Filename, "error", err)
				return nil
			}

			entry.Embedding = emb
			if err := uc.corpus.SaveEmbedding(ctx, entry.Filename, emb); err != nil {
				slog.Warn("corpus_embedding_cache_write_failed", "filename", entry.Filename, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(warnings)
	return entries, warnings
}

func (uc *FindSimilarUseCase) embedStored(ctx context.Context, filename string) (domain.Embedding, error) {
	data, err := uc.corpus.ReadImage(ctx, filename)
	if err != nil {
		return domain.Embedding{}, err
	}

	// Stored images were normalized at upload time, so the bytes go to
	// the provider as-is.
	img := domain.NormalizedImage{
		Data:     data,
		MimeType: "image/jpeg",
		Purpose:  domain.PurposeEmbedding,
	}

	var emb domain.Embedding
	err = uc.retry.Execute(ctx, "provider.embed", func(ctx context.Context) error {
		var callErr error
		emb, callErr = uc.provider.Embed(ctx, img)
		return callErr
	})
	return emb, err
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akarpov/visearch/internal/core/domain"
)

type fakeNormalizer struct {
	err      error
	purposes []domain.ImagePurpose
}

func (f *fakeNormalizer) Normalize(asset domain.ImageAsset, purpose domain.ImagePurpose) (domain.NormalizedImage, error) {
	f.purposes = append(f.purposes, purpose)
	if f.err != nil {
		return domain.NormalizedImage{}, f.err
	}
	return domain.NormalizedImage{
		Data:     asset.Data,
		MimeType: "image/jpeg",
		Purpose:  purpose,
	}, nil
}

// fakeProvider resolves embeddings by input bytes so tests can route
// distinct inputs to distinct vectors or failures.
type fakeProvider struct {
	mu         sync.Mutex
	embeddings map[string]domain.Embedding
	embedErrs  map[string]error
	embedCalls int

	classification domain.ClassificationResult
	classifyErr    error
}

func (f *fakeProvider) Embed(_ context.Context, img domain.NormalizedImage) (domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++

	key := string(img.Data)
	if err, ok := f.embedErrs[key]; ok {
		return domain.Embedding{}, err
	}
	if emb, ok := f.embeddings[key]; ok {
		return emb, nil
	}
	return domain.Embedding{}, errors.New("no embedding configured for input")
}

func (f *fakeProvider) Classify(context.Context, domain.NormalizedImage) (domain.ClassificationResult, error) {
	if f.classifyErr != nil {
		return domain.ClassificationResult{}, f.classifyErr
	}
	return f.classification, nil
}

type fakeCorpus struct {
	mu      sync.Mutex
	entries []domain.CorpusEntry
	images  map[string][]byte

	putEntry *domain.CorpusEntry
	putErr   error
	listErr  error
	saved    map[string]domain.Embedding
}

func (f *fakeCorpus) Put(_ context.Context, img domain.NormalizedImage, filename string, emb domain.Embedding) (domain.CorpusEntry, error) {
	if f.putErr != nil {
		return domain.CorpusEntry{}, f.putErr
	}
	entry := domain.CorpusEntry{
		Filename:  filename,
		Path:      "/corpus/" + filename,
		Embedding: emb,
		StoredAt:  time.Now().UTC(),
	}
	f.putEntry = &entry
	return entry, nil
}

func (f *fakeCorpus) Get(context.Context, string) (domain.CorpusEntry, error) {
	return domain.CorpusEntry{}, errors.New("not implemented")
}

func (f *fakeCorpus) List(context.Context) ([]domain.CorpusEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.CorpusEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeCorpus) Delete(context.Context, string) error { return nil }

func (f *fakeCorpus) ReadImage(_ context.Context, filename string) ([]byte, error) {
	data, ok := f.images[filename]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "read image", errors.New(filename))
	}
	return data, nil
}

func (f *fakeCorpus) SaveEmbedding(_ context.Context, filename string, emb domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]domain.Embedding)
	}
	f.saved[filename] = emb
	return nil
}

type fakeEvents struct {
	published []string
	err       error
}

func (f *fakeEvents) PublishImageStored(_ context.Context, filename string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, filename)
	return nil
}

func (f *fakeEvents) Close() {}

// passRetryer runs the call once with no policy, which is what the
// usecase contract needs tests to observe.
type passRetryer struct{}

func (passRetryer) Execute(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

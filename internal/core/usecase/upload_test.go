package usecase

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/akarpov/visearch/internal/core/domain"
)

var storedNamePattern = regexp.MustCompile(`^\d+_[0-9a-f]{8}\.jpg$`)

func TestUploadSuccess(t *testing.T) {
	normalizer := &fakeNormalizer{}
	provider := &fakeProvider{
		embeddings: map[string]domain.Embedding{
			"query": {Model: "m", Vector: []float32{0.1, 0.2}},
		},
	}
	corpus := &fakeCorpus{}
	events := &fakeEvents{}
	uc := NewUploadImageUseCase(normalizer, provider, corpus, events, passRetryer{})

	entry, err := uc.Upload(context.Background(), domain.ImageAsset{
		Data:     []byte("query"),
		MimeType: "image/jpeg",
		Size:     5,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !storedNamePattern.MatchString(entry.Filename) {
		t.Fatalf("unexpected stored filename %q", entry.Filename)
	}
	if len(entry.Embedding.Vector) != 2 {
		t.Fatalf("expected embedding on entry, got %v", entry.Embedding)
	}
	if len(normalizer.purposes) != 1 || normalizer.purposes[0] != domain.PurposeEmbedding {
		t.Fatalf("expected one embedding normalization, got %v", normalizer.purposes)
	}
	if corpus.putEntry == nil {
		t.Fatalf("expected corpus.Put call")
	}
	if len(events.published) != 1 || events.published[0] != entry.Filename {
		t.Fatalf("expected published filename %s, got %v", entry.Filename, events.published)
	}
}

func TestUploadNormalizationFailureStopsPipeline(t *testing.T) {
	normalizer := &fakeNormalizer{err: domain.WrapError(domain.ErrTooLarge, "normalize", errors.New("6291456 bytes"))}
	provider := &fakeProvider{}
	corpus := &fakeCorpus{}
	events := &fakeEvents{}
	uc := NewUploadImageUseCase(normalizer, provider, corpus, events, passRetryer{})

	_, err := uc.Upload(context.Background(), domain.ImageAsset{Data: []byte("big")})
	if !domain.IsKind(err, domain.ErrTooLarge) {
		t.Fatalf("expected too-large error, got %v", err)
	}
	if provider.embedCalls != 0 {
		t.Fatalf("provider must not be called, got %d calls", provider.embedCalls)
	}
	if corpus.putEntry != nil {
		t.Fatalf("nothing must be stored on rejection")
	}
}

func TestUploadEmbedFailureStoresNothing(t *testing.T) {
	normalizer := &fakeNormalizer{}
	provider := &fakeProvider{
		embedErrs: map[string]error{
			"query": domain.WrapError(domain.ErrProviderUnavailable, "embed", errors.New("down")),
		},
	}
	corpus := &fakeCorpus{}
	events := &fakeEvents{}
	uc := NewUploadImageUseCase(normalizer, provider, corpus, events, passRetryer{})

	_, err := uc.Upload(context.Background(), domain.ImageAsset{Data: []byte("query")})
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if corpus.putEntry != nil {
		t.Fatalf("nothing must be stored when the embedding call fails")
	}
	if len(events.published) != 0 {
		t.Fatalf("nothing must be announced when the upload fails")
	}
}

func TestUploadPublishFailureIsNotFatal(t *testing.T) {
	normalizer := &fakeNormalizer{}
	provider := &fakeProvider{
		embeddings: map[string]domain.Embedding{
			"query": {Model: "m", Vector: []float32{1}},
		},
	}
	corpus := &fakeCorpus{}
	events := &fakeEvents{err: errors.New("stream down")}
	uc := NewUploadImageUseCase(normalizer, provider, corpus, events, passRetryer{})

	entry, err := uc.Upload(context.Background(), domain.ImageAsset{Data: []byte("query")})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if entry.Filename == "" {
		t.Fatalf("expected stored entry despite publish failure")
	}
}

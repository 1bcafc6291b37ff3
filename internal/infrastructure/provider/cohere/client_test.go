package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akarpov/visearch/internal/core/domain"
)

func testImage() domain.NormalizedImage {
	return domain.NormalizedImage{
		Data:     []byte("jpeg-bytes"),
		MimeType: "image/jpeg",
		Purpose:  domain.PurposeEmbedding,
	}
}

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		EmbedModel: "embed-test",
		ChatModel:  "chat-test",
		Timeout:    2 * time.Second,
	}, nil)
}

func TestEmbedReturnsFirstVector(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	emb, err := client.Embed(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotBody["input_type"] != "image" {
		t.Fatalf("expected input_type image, got %v", gotBody["input_type"])
	}
	if emb.Model != "embed-test" {
		t.Fatalf("expected model embed-test, got %s", emb.Model)
	}
	if len(emb.Vector) != 3 || emb.Vector[0] != 0.1 {
		t.Fatalf("unexpected vector %v", emb.Vector)
	}
}

func TestEmbedEmptyResponseIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Embed(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderMalformed) {
		t.Fatalf("expected malformed provider error, got %v", err)
	}
}

func TestEmbedServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Embed(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable provider error, got %v", err)
	}
}

func TestEmbedRateLimitIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Embed(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable provider error, got %v", err)
	}
}

func TestEmbedClientErrorIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Embed(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderRejected) {
		t.Fatalf("expected rejected provider error, got %v", err)
	}
}

func TestEmbedTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		EmbedModel: "embed-test",
		ChatModel:  "chat-test",
		Timeout:    50 * time.Millisecond,
	}, nil)

	_, err := client.Embed(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderTimeout) {
		t.Fatalf("expected timeout provider error, got %v", err)
	}
}

func TestClassifyUsesFirstLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "A tabby cat on a windowsill.\nAdditional commentary that must be dropped.",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Class != "A tabby cat on a windowsill." {
		t.Fatalf("expected first line only, got %q", result.Class)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected default confidence 1.0, got %f", result.Confidence)
	}
}

func TestClassifyKeepsProviderConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":       "a dog",
			"confidence": 0.42,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Confidence != 0.42 {
		t.Fatalf("expected confidence 0.42, got %f", result.Confidence)
	}
}

func TestClassifyEmptyTextIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "\n\n"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Classify(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderMalformed) {
		t.Fatalf("expected malformed provider error, got %v", err)
	}
}

func TestEmbedUndecodableBodyIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Embed(context.Background(), testImage())
	if !domain.IsKind(err, domain.ErrProviderMalformed) {
		t.Fatalf("expected malformed provider error, got %v", err)
	}
}

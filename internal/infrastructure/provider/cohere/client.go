// Package cohere is the gateway to the remote embedding/classification
// provider. One method call is one remote attempt: retry decisions live
// with the callers, since every attempt costs quota.
package cohere

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/observability/metrics"
)

// classificationPrompt is fixed; the first line of whatever comes back
// is the label (see Classify).
const classificationPrompt = "What is in this image? One brief sentence."

type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration

	// Client-side token bucket guarding provider quota. RPS <= 0
	// disables limiting.
	RateLimitRPS   int
	RateLimitBurst int
}

type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.PipelineMetrics
}

func New(cfg Config, m *metrics.PipelineMetrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPS
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		metrics:    m,
	}
}

// Embed sends the normalized buffer as a base64 payload and returns the
// first vector of the response.
func (c *Client) Embed(ctx context.Context, img domain.NormalizedImage) (domain.Embedding, error) {
	request := map[string]any{
		"texts":      []string{base64.StdEncoding.EncodeToString(img.Data)},
		"model":      c.embedModel,
		"input_type": "image",
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.call(ctx, "/v1/embed", "embed", request, &response); err != nil {
		return domain.Embedding{}, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return domain.Embedding{}, domain.WrapError(domain.ErrProviderMalformed, "embed", fmt.Errorf("response carries no vector"))
	}
	return domain.Embedding{Model: c.embedModel, Vector: response.Embeddings[0]}, nil
}

// Classify sends the classification variant with the fixed prompt. Only
// the first line of the returned text becomes the label: providers have
// been seen echoing structured and multi-line content, and everything
// past the first newline is untrusted. Confidence defaults to 1.0 when
// the provider supplies none; callers must not read certainty into it.
func (c *Client) Classify(ctx context.Context, img domain.NormalizedImage) (domain.ClassificationResult, error) {
	request := map[string]any{
		"message": classificationPrompt,
		"model":   c.chatModel,
		"documents": []map[string]string{
			{"text": base64.StdEncoding.EncodeToString(img.Data), "type": "image"},
		},
	}

	var response struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	}
	if err := c.call(ctx, "/v1/chat", "classify", request, &response); err != nil {
		return domain.ClassificationResult{}, err
	}

	label := firstLine(response.Text)
	if label == "" {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrProviderMalformed, "classify", fmt.Errorf("response carries no label"))
	}

	confidence := 1.0
	if response.Confidence != nil {
		confidence = *response.Confidence
	}
	return domain.ClassificationResult{Class: label, Confidence: confidence}, nil
}

func (c *Client) call(ctx context.Context, path, operation string, request, response any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return translateError(operation, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := translateError(operation, c.postJSON(ctx, path, request, response, operation))
	if c.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = domain.KindLabel(err)
		}
		c.metrics.ObserveProviderCall(operation, outcome, time.Since(start))
	}
	return err
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

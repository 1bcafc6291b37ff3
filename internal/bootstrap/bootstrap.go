package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/akarpov/visearch/internal/config"
	"github.com/akarpov/visearch/internal/core/ports"
	"github.com/akarpov/visearch/internal/core/similarity"
	"github.com/akarpov/visearch/internal/core/usecase"
	"github.com/akarpov/visearch/internal/infrastructure/corpus/localfs"
	"github.com/akarpov/visearch/internal/infrastructure/imaging"
	"github.com/akarpov/visearch/internal/infrastructure/provider/cohere"
	natsqueue "github.com/akarpov/visearch/internal/infrastructure/queue/nats"
	"github.com/akarpov/visearch/internal/infrastructure/resilience"
	"github.com/akarpov/visearch/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.PipelineMetrics
	Corpus  ports.CorpusStore

	UploadUC   ports.ImageUploader
	ClassifyUC ports.ImageClassifier
	CompareUC  ports.ImageComparer
	SimilarUC  ports.SimilarImageFinder

	closeFn func()
}

func New(_ context.Context, cfg config.Config, service string) (*App, error) {
	// A missing credential is a deployment mistake; fail at startup,
	// not on the first request.
	if cfg.CohereAPIKey == "" {
		return nil, fmt.Errorf("COHERE_API_KEY is required")
	}

	weights, err := cfg.Weights()
	if err != nil {
		return nil, fmt.Errorf("load similarity weights: %w", err)
	}

	corpus, err := localfs.New(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init corpus store: %w", err)
	}

	m := metrics.NewPipelineMetrics(service)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.ProviderRetryMaxAttempts,
		BreakerEnabled:   true,
	})
	retrier := resilience.NewRetryer(executor, cohere.ClassifyError)

	provider := cohere.New(cohere.Config{
		BaseURL:        cfg.CohereAPIURL,
		APIKey:         cfg.CohereAPIKey,
		EmbedModel:     cfg.CohereEmbedModel,
		ChatModel:      cfg.CohereChatModel,
		Timeout:        time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
		RateLimitRPS:   cfg.ProviderRateLimitRPS,
		RateLimitBurst: cfg.ProviderRateLimitBurst,
	}, m)

	normalizer := imaging.New(cfg.MaxFileSizeBytes)
	engine := similarity.NewEngine(cfg.RankTopK, weights)

	var events ports.EventPublisher = noopPublisher{}
	closeFn := func() {}
	if cfg.NATSURL != "" {
		publisher, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		events = publisher
		closeFn = publisher.Close
	}

	return &App{
		Config:  cfg,
		Metrics: m,
		Corpus:  corpus,

		UploadUC:   usecase.NewUploadImageUseCase(normalizer, provider, corpus, events, retrier),
		ClassifyUC: usecase.NewClassifyImageUseCase(normalizer, provider, retrier),
		CompareUC:  usecase.NewCompareImagesUseCase(normalizer, provider, engine, retrier),
		SimilarUC:  usecase.NewFindSimilarUseCase(normalizer, provider, corpus, engine, retrier, cfg.EmbedConcurrency),

		closeFn: closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishImageStored(context.Context, string) error { return nil }
func (noopPublisher) Close()                                           {}

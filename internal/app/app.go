// Package app assembles the service components from configuration. It is shared
// by the HTTP server and the command line client.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/rehab-research-service/internal/analysis"
	"github.com/helixir/rehab-research-service/internal/config"
	"github.com/helixir/rehab-research-service/internal/llm"
	"github.com/helixir/rehab-research-service/internal/observability"
	"github.com/helixir/rehab-research-service/internal/papersources/pubmed"
	"github.com/helixir/rehab-research-service/internal/pipeline"
)

// NewPubMedClient builds the PubMed client described by cfg.
func NewPubMedClient(cfg config.PubMedConfig, logger zerolog.Logger, metrics *observability.Metrics) *pubmed.Client {
	return pubmed.New(pubmed.Config{
		SearchBaseURL:   cfg.SearchBaseURL,
		PageBaseURL:     cfg.PageBaseURL,
		APIKey:          cfg.APIKey,
		DomainQualifier: cfg.DomainQualifier,
		Timeout:         cfg.Timeout,
		RateLimit:       cfg.RateLimit,
		BurstSize:       cfg.BurstSize,
		MaxRetries:      cfg.MaxRetries,
		UserAgent:       cfg.UserAgent,
	}, pubmed.WithLogger(logger), pubmed.WithMetrics(metrics))
}

// NewPipeline builds a search pipeline backed by PubMed.
func NewPipeline(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) *pipeline.Pipeline {
	client := NewPubMedClient(cfg.PubMed, logger, metrics)
	return pipeline.New(client, pipeline.Options{
		PacingInterval:    cfg.Pipeline.PacingInterval,
		EnrichmentWorkers: cfg.Pipeline.EnrichmentWorkers,
		Logger:            logger,
		Metrics:           metrics,
	})
}

// NewAnalyzer builds the research analyzer. It fails when the configured LLM
// provider has no credentials.
func NewAnalyzer(cfg config.LLMConfig, logger zerolog.Logger, metrics *observability.Metrics) (*analysis.Analyzer, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	completer, err := llm.NewCompleter(llm.FactoryConfig{
		Provider: cfg.Provider,
		Generation: llm.GenerationConfig{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
			RetryDelay:  cfg.RetryDelay,
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM completer: %w", err)
	}

	return analysis.New(llm.Instrument(completer, logger, metrics), logger), nil
}

// LoggingConfig converts the logging section for observability.NewLogger.
func LoggingConfig(cfg config.LoggingConfig) observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	}
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/rehab-research-service/internal/config"
	"github.com/helixir/rehab-research-service/internal/papersources/pubmed/pubmedtest"
	"github.com/helixir/rehab-research-service/internal/pipeline"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		PubMed: config.PubMedConfig{
			SearchBaseURL:   baseURL,
			PageBaseURL:     baseURL,
			DomainQualifier: "rehabilitation",
			Timeout:         5 * time.Second,
			RateLimit:       100,
			BurstSize:       10,
		},
		Pipeline: config.PipelineConfig{
			DefaultResults:    10,
			MaxResults:        20,
			PacingInterval:    pipeline.NoPacing,
			EnrichmentWorkers: 1,
		},
		LLM: config.LLMConfig{
			Provider:  config.ProviderAnthropic,
			MaxTokens: 1024,
		},
	}
}

func TestNewPipeline_ResolvesAgainstPubMed(t *testing.T) {
	fake := pubmedtest.NewServer()
	defer fake.Close()

	p := NewPipeline(testConfig(fake.URL), zerolog.Nop(), nil)
	result := p.Run(context.Background(), "stroke", 1)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "12345678", result.Records[0].ID)
	assert.Equal(t, fake.URL+"/12345678/", result.Records[0].SourceURL)
	assert.Empty(t, result.Failures)
	assert.Equal(t, []string{"stroke AND rehabilitation"}, fake.Terms())
}

func TestNewPubMedClient_UsesConfiguredUserAgent(t *testing.T) {
	fake := pubmedtest.NewServer()
	defer fake.Close()

	cfg := testConfig(fake.URL).PubMed
	cfg.UserAgent = "TestAgent/2.0"
	client := NewPubMedClient(cfg, zerolog.Nop(), nil)

	_, err := client.SearchIDs(context.Background(), "gait", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"TestAgent/2.0"}, fake.UserAgents())
}

func TestNewAnalyzer(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		cfg := testConfig("http://unused").LLM
		a, err := NewAnalyzer(cfg, zerolog.Nop(), nil)
		require.Error(t, err)
		assert.Nil(t, a)
		assert.Contains(t, err.Error(), "REHABRESEARCH_LLM_ANTHROPIC_API_KEY")
	})

	t.Run("anthropic", func(t *testing.T) {
		cfg := testConfig("http://unused").LLM
		cfg.Anthropic.APIKey = "sk-ant-test"
		a, err := NewAnalyzer(cfg, zerolog.Nop(), nil)
		require.NoError(t, err)
		assert.NotNil(t, a)
	})

	t.Run("openai", func(t *testing.T) {
		cfg := testConfig("http://unused").LLM
		cfg.Provider = config.ProviderOpenAI
		cfg.OpenAI.APIKey = "sk-test"
		a, err := NewAnalyzer(cfg, zerolog.Nop(), nil)
		require.NoError(t, err)
		assert.NotNil(t, a)
	})
}

func TestLoggingConfig(t *testing.T) {
	got := LoggingConfig(config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr", AddSource: true, TimeFormat: time.Kitchen})

	assert.Equal(t, "debug", got.Level)
	assert.Equal(t, "console", got.Format)
	assert.Equal(t, "stderr", got.Output)
	assert.True(t, got.AddSource)
	assert.Equal(t, time.Kitchen, got.TimeFormat)
}

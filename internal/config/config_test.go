package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "rehab_research", cfg.Metrics.Namespace)

	// PubMed defaults
	assert.Equal(t, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", cfg.PubMed.SearchBaseURL)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov", cfg.PubMed.PageBaseURL)
	assert.Equal(t, "rehabilitation", cfg.PubMed.DomainQualifier)
	assert.Equal(t, 15*time.Second, cfg.PubMed.Timeout)
	assert.Equal(t, 3.0, cfg.PubMed.RateLimit)
	assert.Equal(t, 0, cfg.PubMed.MaxRetries)
	assert.Equal(t, "RehabResearchBot/1.0 (Educational Project)", cfg.PubMed.UserAgent)

	// Pipeline defaults
	assert.Equal(t, 10, cfg.Pipeline.DefaultResults)
	assert.Equal(t, 20, cfg.Pipeline.MaxResults)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.PacingInterval)
	assert.Equal(t, 1, cfg.Pipeline.EnrichmentWorkers)

	// LLM defaults
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, "claude-3-sonnet-20240229", cfg.LLM.Anthropic.Model)
	assert.Equal(t, "gpt-4-turbo", cfg.LLM.OpenAI.Model)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("REHABRESEARCH_SERVER_HTTP_PORT", "8888")
	t.Setenv("REHABRESEARCH_LOGGING_LEVEL", "debug")
	t.Setenv("REHABRESEARCH_PUBMED_SEARCH_BASE_URL", "http://localhost:9000/eutils")
	t.Setenv("REHABRESEARCH_PIPELINE_MAX_RESULTS", "15")
	t.Setenv("REHABRESEARCH_PIPELINE_PACING_INTERVAL", "750ms")
	t.Setenv("REHABRESEARCH_LLM_PROVIDER", "openai")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:9000/eutils", cfg.PubMed.SearchBaseURL)
	assert.Equal(t, 15, cfg.Pipeline.MaxResults)
	assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.PacingInterval)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
}

func TestLoad_PacingBelowMinimumRejected(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("REHABRESEARCH_PIPELINE_PACING_INTERVAL", "100ms")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pacing_interval")
}

func TestLoadFile(t *testing.T) {
	clearEnvVars(t)

	t.Run("reads the named file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rehab.yaml")
		content := strings.Join([]string{
			"server:",
			"  http_port: 7070",
			"pipeline:",
			"  default_results: 5",
			"  enrichment_workers: 3",
			"pubmed:",
			"  domain_qualifier: physiotherapy",
			"",
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.HTTPPort)
		assert.Equal(t, 5, cfg.Pipeline.DefaultResults)
		assert.Equal(t, 3, cfg.Pipeline.EnrichmentWorkers)
		assert.Equal(t, "physiotherapy", cfg.PubMed.DomainQualifier)
		assert.Equal(t, 20, cfg.Pipeline.MaxResults, "unset keys keep defaults")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("secrets in the file are ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rehab.yaml")
		content := "pubmed:\n  api_key: from-file\nllm:\n  anthropic:\n    api_key: from-file\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Empty(t, cfg.PubMed.APIKey)
		assert.Empty(t, cfg.LLM.Anthropic.APIKey)
	})
}

func TestLoad_APIKeysFromEnvOnly(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("REHABRESEARCH_PUBMED_API_KEY", "ncbi-test")
	t.Setenv("REHABRESEARCH_LLM_ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("REHABRESEARCH_LLM_OPENAI_API_KEY", "sk-openai-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ncbi-test", cfg.PubMed.APIKey)
	assert.Equal(t, "sk-ant-test", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "sk-openai-test", cfg.LLM.OpenAI.APIKey)
}

func TestLoad_APIKeysEmptyByDefault(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.PubMed.APIKey)
	assert.Empty(t, cfg.LLM.Anthropic.APIKey)
	assert.Empty(t, cfg.LLM.OpenAI.APIKey)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name: "HTTP port zero",
			modifyFunc: func(c *Config) {
				c.Server.HTTPPort = 0
			},
			expectedErr: "invalid HTTP port: 0",
		},
		{
			name: "HTTP port too high",
			modifyFunc: func(c *Config) {
				c.Server.HTTPPort = 70000
			},
			expectedErr: "invalid HTTP port: 70000",
		},
		{
			name: "metrics port invalid",
			modifyFunc: func(c *Config) {
				c.Server.MetricsPort = -5
			},
			expectedErr: "invalid metrics port: -5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level: verbose")

	cfg.Logging.Level = "WARN"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_PubMed(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{"missing search base", func(c *Config) { c.PubMed.SearchBaseURL = "" }, "search_base_url is required"},
		{"missing page base", func(c *Config) { c.PubMed.PageBaseURL = "" }, "page_base_url is required"},
		{"zero timeout", func(c *Config) { c.PubMed.Timeout = 0 }, "timeout must be positive"},
		{"negative retries", func(c *Config) { c.PubMed.MaxRetries = -1 }, "max_retries must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestValidate_Pipeline(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{"zero max results", func(c *Config) { c.Pipeline.MaxResults = 0 }, "max_results must be positive"},
		{"default above max", func(c *Config) { c.Pipeline.DefaultResults = 25 }, "default_results (25)"},
		{"zero default", func(c *Config) { c.Pipeline.DefaultResults = 0 }, "default_results (0)"},
		{"pacing too short", func(c *Config) { c.Pipeline.PacingInterval = 499 * time.Millisecond }, "below the minimum"},
		{"no workers", func(c *Config) { c.Pipeline.EnrichmentWorkers = 0 }, "enrichment_workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}

	t.Run("minimum pacing accepted", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.PacingInterval = MinPacingInterval
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate_LLMConfig(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.Provider = "bedrock"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported LLM provider: "bedrock"`)
	})

	t.Run("max tokens zero", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.MaxTokens = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LLM max_tokens must be positive")
	})

	t.Run("missing key is not a validation error", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.Anthropic.APIKey = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestLLMConfig_ValidateCredentials(t *testing.T) {
	tests := []struct {
		name        string
		cfg         LLMConfig
		errContains string
	}{
		{
			name: "anthropic with key",
			cfg:  LLMConfig{Provider: "anthropic", Anthropic: ProviderConfig{APIKey: "sk-ant"}},
		},
		{
			name:        "anthropic without key",
			cfg:         LLMConfig{Provider: "anthropic", OpenAI: ProviderConfig{APIKey: "sk-openai"}},
			errContains: "REHABRESEARCH_LLM_ANTHROPIC_API_KEY",
		},
		{
			name: "openai with key",
			cfg:  LLMConfig{Provider: "OpenAI", OpenAI: ProviderConfig{APIKey: "sk-openai"}},
		},
		{
			name:        "openai without key",
			cfg:         LLMConfig{Provider: "openai"},
			errContains: "REHABRESEARCH_LLM_OPENAI_API_KEY",
		},
		{
			name:        "unknown provider",
			cfg:         LLMConfig{Provider: "gemini"},
			errContains: "unsupported LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateCredentials()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLLMConfig_Active(t *testing.T) {
	cfg := LLMConfig{
		Provider:  "openai",
		OpenAI:    ProviderConfig{Model: "gpt-4-turbo"},
		Anthropic: ProviderConfig{Model: "claude-3-sonnet-20240229"},
	}
	assert.Equal(t, "gpt-4-turbo", cfg.Active().Model)

	cfg.Provider = "anthropic"
	assert.Equal(t, "claude-3-sonnet-20240229", cfg.Active().Model)
}

func TestPipelineConfig_ClampResults(t *testing.T) {
	cfg := PipelineConfig{DefaultResults: 10, MaxResults: 20}

	assert.Equal(t, 10, cfg.ClampResults(0))
	assert.Equal(t, 10, cfg.ClampResults(-4))
	assert.Equal(t, 1, cfg.ClampResults(1))
	assert.Equal(t, 20, cfg.ClampResults(20))
	assert.Equal(t, 20, cfg.ClampResults(500))
}

func TestServerConfig_Addresses(t *testing.T) {
	cfg := ServerConfig{
		Host:        "127.0.0.1",
		HTTPPort:    8080,
		MetricsPort: 9091,
	}
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddress())
	assert.Equal(t, "127.0.0.1:9091", cfg.MetricsAddress())
}

// clearEnvVars removes all REHABRESEARCH_ prefixed environment variables for
// the duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8080,
			MetricsPort: 9091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		PubMed: PubMedConfig{
			SearchBaseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			PageBaseURL:   "https://pubmed.ncbi.nlm.nih.gov",
			Timeout:       15 * time.Second,
		},
		Pipeline: PipelineConfig{
			DefaultResults:    10,
			MaxResults:        20,
			PacingInterval:    500 * time.Millisecond,
			EnrichmentWorkers: 1,
		},
		LLM: LLMConfig{
			Provider:  ProviderAnthropic,
			MaxTokens: 4096,
			Anthropic: ProviderConfig{APIKey: "sk-ant"},
		},
	}
}

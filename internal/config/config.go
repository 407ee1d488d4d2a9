// Package config provides configuration management for the rehabilitation research service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "REHABRESEARCH"

// MinPacingInterval is the smallest detail page pacing interval accepted.
const MinPacingInterval = 500 * time.Millisecond

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all configuration for the rehabilitation research service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// PubMed contains E-utilities and detail page settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Pipeline contains search pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// LLM contains settings for the research analysis client.
	LLM LLMConfig `mapstructure:"llm"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Analysis calls
	// can take a while, so this is generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// PubMedConfig holds PubMed client configuration.
type PubMedConfig struct {
	// SearchBaseURL is the E-utilities base URL.
	SearchBaseURL string `mapstructure:"search_base_url"`
	// PageBaseURL is the article detail page base URL.
	PageBaseURL string `mapstructure:"page_base_url"`
	// APIKey is the NCBI API key (loaded from REHABRESEARCH_PUBMED_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// DomainQualifier is ANDed onto every search term.
	DomainQualifier string `mapstructure:"domain_qualifier"`
	// Timeout bounds each upstream request.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests.
	BurstSize int `mapstructure:"burst_size"`
	// MaxRetries is the number of retries on 429 and 5xx replies.
	MaxRetries int `mapstructure:"max_retries"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
}

// PipelineConfig holds search pipeline configuration.
type PipelineConfig struct {
	// DefaultResults is the result bound used when a request gives none.
	DefaultResults int `mapstructure:"default_results"`
	// MaxResults is the largest result bound a request may ask for.
	MaxResults int `mapstructure:"max_results"`
	// PacingInterval spaces consecutive detail page requests.
	PacingInterval time.Duration `mapstructure:"pacing_interval"`
	// EnrichmentWorkers is the number of concurrent detail page workers.
	EnrichmentWorkers int `mapstructure:"enrichment_workers"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (anthropic, openai).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens caps the length of each completion.
	MaxTokens int `mapstructure:"max_tokens"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI ProviderConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds settings for one LLM provider.
type ProviderConfig struct {
	// APIKey is the provider API key (loaded from the environment only).
	APIKey string `mapstructure:"-"`
	// Model is the model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// ClampResults applies the default and maximum result bounds to a requested count.
// A non-positive request means the default.
func (c *PipelineConfig) ClampResults(requested int) int {
	if requested <= 0 {
		requested = c.DefaultResults
	}
	if requested < 1 {
		requested = 1
	}
	if requested > c.MaxResults {
		requested = c.MaxResults
	}
	return requested
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading the named config file instead
// of searching the default locations. An empty path searches as Load does.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rehab-research-service")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found is OK, we'll use env vars and defaults
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment only; their fields use mapstructure:"-".
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadSecrets(cfg *Config) {
	cfg.PubMed.APIKey = os.Getenv(EnvPrefix + "_PUBMED_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_API_KEY")
	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "rehab_research")

	// PubMed defaults. NCBI allows 3 req/sec without an API key.
	v.SetDefault("pubmed.search_base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.page_base_url", "https://pubmed.ncbi.nlm.nih.gov")
	v.SetDefault("pubmed.domain_qualifier", "rehabilitation")
	v.SetDefault("pubmed.timeout", "15s")
	v.SetDefault("pubmed.rate_limit", 3.0)
	v.SetDefault("pubmed.burst_size", 3)
	v.SetDefault("pubmed.max_retries", 0)
	v.SetDefault("pubmed.user_agent", "RehabResearchBot/1.0 (Educational Project)")

	// Pipeline defaults
	v.SetDefault("pipeline.default_results", 10)
	v.SetDefault("pipeline.max_results", 20)
	v.SetDefault("pipeline.pacing_interval", "500ms")
	v.SetDefault("pipeline.enrichment_workers", 1)

	// LLM defaults
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.provider", ProviderAnthropic)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.openai.model", "gpt-4-turbo")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
}

// Validate validates the configuration. It does not require LLM credentials;
// see LLMConfig.ValidateCredentials.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate PubMed config
	if c.PubMed.SearchBaseURL == "" {
		return fmt.Errorf("pubmed search_base_url is required")
	}
	if c.PubMed.PageBaseURL == "" {
		return fmt.Errorf("pubmed page_base_url is required")
	}
	if c.PubMed.Timeout <= 0 {
		return fmt.Errorf("pubmed timeout must be positive")
	}
	if c.PubMed.MaxRetries < 0 {
		return fmt.Errorf("pubmed max_retries must not be negative")
	}

	// Validate pipeline config
	if c.Pipeline.MaxResults <= 0 {
		return fmt.Errorf("pipeline max_results must be positive")
	}
	if c.Pipeline.DefaultResults <= 0 || c.Pipeline.DefaultResults > c.Pipeline.MaxResults {
		return fmt.Errorf("pipeline default_results (%d) must be between 1 and max_results (%d)",
			c.Pipeline.DefaultResults, c.Pipeline.MaxResults)
	}
	if c.Pipeline.PacingInterval < MinPacingInterval {
		return fmt.Errorf("pipeline pacing_interval %s is below the minimum of %s",
			c.Pipeline.PacingInterval, MinPacingInterval)
	}
	if c.Pipeline.EnrichmentWorkers < 1 {
		return fmt.Errorf("pipeline enrichment_workers must be at least 1")
	}

	// Validate LLM config
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM max_tokens must be positive")
	}

	return nil
}

// ValidateCredentials reports whether the configured provider has its API key set.
// Search works without one; only the analysis endpoints need it.
func (c *LLMConfig) ValidateCredentials() error {
	switch strings.ToLower(c.Provider) {
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_ANTHROPIC_API_KEY to be set", c.Provider, EnvPrefix)
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.Provider, EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.Provider)
	}
	return nil
}

// Active returns the settings of the configured provider.
func (c *LLMConfig) Active() ProviderConfig {
	if strings.ToLower(c.Provider) == ProviderOpenAI {
		return c.OpenAI
	}
	return c.Anthropic
}

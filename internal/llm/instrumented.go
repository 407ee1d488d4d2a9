package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/rehab-research-service/internal/observability"
)

// InstrumentedCompleter records logs and metrics around another Completer.
type InstrumentedCompleter struct {
	next    Completer
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Instrument wraps c with request logging and metrics. A nil metrics value
// records nothing.
func Instrument(c Completer, logger zerolog.Logger, metrics *observability.Metrics) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		next: c,
		logger: logger.With().
			Str("component", "llm").
			Str("provider", c.Provider()).
			Str("model", c.Model()).
			Logger(),
		metrics: metrics,
	}
}

// Complete implements Completer.
func (c *InstrumentedCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	op := req.Operation
	if op == "" {
		op = "complete"
	}
	logger := observability.LoggerFromContext(ctx, c.logger).With().Str("operation", op).Logger()

	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.RecordLLMRequestFailed(op, c.next.Model(), errorType(err))
		logger.Warn().Err(err).Dur("duration", elapsed).Msg("completion failed")
		return nil, err
	}

	c.metrics.RecordLLMRequest(op, out.Model, elapsed.Seconds(), out.InputTokens, out.OutputTokens)
	logger.Debug().
		Int("input_tokens", out.InputTokens).
		Int("output_tokens", out.OutputTokens).
		Str("stop_reason", out.StopReason).
		Dur("duration", elapsed).
		Msg("completion finished")
	return out, nil
}

// Provider implements Completer.
func (c *InstrumentedCompleter) Provider() string { return c.next.Provider() }

// Model implements Completer.
func (c *InstrumentedCompleter) Model() string { return c.next.Model() }

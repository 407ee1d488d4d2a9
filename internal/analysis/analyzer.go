// Package analysis turns resolved article records into LLM-written research
// analyses, summaries and treatment comparisons.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/llm"
)

// Operation names used for logs and LLM metrics.
const (
	OpAnalyze   = "analyze"
	OpSummarize = "summarize"
	OpCompare   = "compare"
)

// Fixed replies returned without an LLM call.
const (
	NoArticlesForQuery = "No articles were found for this query. Please try a different search term."
	NoArticlesToSum    = "No articles to summarize."
)

// ErrAnalysis wraps every completion failure.
var ErrAnalysis = errors.New("analysis failed")

const (
	analyzeSystemPrompt = "You are an expert rehabilitation research analyst. Your role is to:\n" +
		"1. Synthesize findings from multiple research articles\n" +
		"2. Identify key trends, methodologies, and outcomes in rehabilitation science\n" +
		"3. Provide evidence-based insights with proper citations to the source articles\n" +
		"4. Highlight areas of consensus and disagreement among studies\n" +
		"5. Suggest practical implications for rehabilitation practitioners\n\n" +
		"Always cite specific articles when making claims. Be thorough but accessible."

	summarizeSystemPrompt = "You are an expert rehabilitation research summarizer. " +
		"Provide concise, accurate summaries that highlight the most " +
		"important findings and their clinical relevance."

	compareSystemPrompt = "You are an expert rehabilitation research analyst specializing in " +
		"evidence-based treatment comparison. Provide balanced, objective " +
		"comparisons grounded in the available research."
)

// Analyzer produces research analyses with an LLM. It is safe for concurrent use.
type Analyzer struct {
	completer llm.Completer
	logger    zerolog.Logger
}

// New creates an Analyzer over the given completer.
func New(completer llm.Completer, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		logger:    logger.With().Str("component", "analyzer").Logger(),
	}
}

// AnalyzeResearch answers question from the given records. An empty record
// list returns NoArticlesForQuery without calling the LLM.
func (a *Analyzer) AnalyzeResearch(ctx context.Context, records []domain.ArticleRecord, question string) (string, error) {
	if len(records) == 0 {
		return NoArticlesForQuery, nil
	}

	prompt := "Based on the following rehabilitation research articles, please answer this question:\n\n" +
		"Question: " + question + "\n\n" +
		"Research Articles:\n" + BuildResearchContext(records) + "\n\n" +
		"Provide a comprehensive analysis with citations to specific articles."

	return a.complete(ctx, OpAnalyze, analyzeSystemPrompt, prompt, len(records))
}

// SummarizeArticles writes a structured summary of the records. An empty record
// list returns NoArticlesToSum without calling the LLM.
func (a *Analyzer) SummarizeArticles(ctx context.Context, records []domain.ArticleRecord) (string, error) {
	if len(records) == 0 {
		return NoArticlesToSum, nil
	}

	prompt := fmt.Sprintf("Please provide a structured summary of the following %d rehabilitation research articles. Include:\n", len(records)) +
		"1. Overall themes across the research\n" +
		"2. Key findings from each study\n" +
		"3. Common methodologies used\n" +
		"4. Gaps in the current research\n" +
		"5. Suggested directions for future research\n\n" +
		"Articles:\n" + BuildResearchContext(records)

	return a.complete(ctx, OpSummarize, summarizeSystemPrompt, prompt, len(records))
}

// CompareTreatments compares two rehabilitation approaches in light of the records.
// Unlike the other operations it calls the LLM even with no records.
func (a *Analyzer) CompareTreatments(ctx context.Context, records []domain.ArticleRecord, treatmentA, treatmentB string) (string, error) {
	prompt := "Based on the following research articles, compare these two rehabilitation approaches:\n\n" +
		"Treatment A: " + treatmentA + "\n" +
		"Treatment B: " + treatmentB + "\n\n" +
		"Please compare them on:\n" +
		"1. Efficacy and outcomes\n" +
		"2. Patient populations studied\n" +
		"3. Duration and intensity of treatment\n" +
		"4. Side effects or limitations\n" +
		"5. Cost-effectiveness (if mentioned)\n" +
		"6. Overall recommendation based on evidence\n\n" +
		"Research Articles:\n" + BuildResearchContext(records)

	return a.complete(ctx, OpCompare, compareSystemPrompt, prompt, len(records))
}

func (a *Analyzer) complete(ctx context.Context, op, system, prompt string, articles int) (string, error) {
	out, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Operation: op,
		System:    system,
		Prompt:    prompt,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("operation", op).Int("articles", articles).Msg("analysis request failed")
		return "", fmt.Errorf("%w: %s: %w", ErrAnalysis, op, err)
	}
	return out.Text, nil
}

// BuildResearchContext renders records as the numbered article blocks the
// prompts embed. Blocks are separated by a blank line.
func BuildResearchContext(records []domain.ArticleRecord) string {
	parts := make([]string, 0, len(records))
	for i, r := range records {
		var sb strings.Builder
		fmt.Fprintf(&sb, "--- Article %d ---\n", i+1)
		fmt.Fprintf(&sb, "Title: %s\n", r.Title)
		fmt.Fprintf(&sb, "Authors: %s\n", strings.Join(r.Authors, "; "))
		fmt.Fprintf(&sb, "Journal: %s (%s)\n", orNA(r.Journal), orNA(r.Year))
		fmt.Fprintf(&sb, "Abstract: %s\n", r.Abstract)
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(r.Keywords, ", "))
		fmt.Fprintf(&sb, "URL: %s\n", orNA(r.SourceURL))
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

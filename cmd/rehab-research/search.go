package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/rehab-research-service/internal/domain"
)

var (
	errEmptyQuery   = domain.NewValidationError("query", "please enter a search query")
	errNoArticles   = fmt.Errorf("%w: no articles match, try a different search term", domain.ErrNotFound)
	errUpstreamDown = fmt.Errorf("%w: the literature database could not be reached, try again later", domain.ErrUpstream)
)

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("query", "q", "", "search query (may also be given as arguments)")
	cmd.Flags().IntP("max-results", "n", 0, "maximum number of articles (default from config, capped by pipeline.max_results)")
}

// resolve runs the search pipeline for the command's query flags.
func (c *cli) resolve(cmd *cobra.Command, args []string) ([]domain.ArticleRecord, error) {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = strings.Join(args, " ")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errEmptyQuery
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	bound := c.cfg.Pipeline.ClampResults(maxResults)

	result := c.deps.newSearcher(c.cfg, c.logger).Run(cmd.Context(), query, bound)
	for _, f := range result.Failures {
		c.logger.Warn().Err(f).Msg("upstream call degraded")
	}
	if len(result.Records) == 0 {
		if result.UpstreamFailed() {
			return nil, errUpstreamDown
		}
		return nil, errNoArticles
	}
	return result.Records, nil
}

func newSearchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search PubMed for rehabilitation articles",
		Long: `Search resolves a free-text query into enriched article records. The
configured domain qualifier is ANDed onto the query, and each article's detail
page is fetched for keywords and MeSH terms.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(cmd)
			if err != nil {
				return err
			}
			records, err := c.resolve(cmd, args)
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), format, records)
		},
	}
	addSearchFlags(cmd)
	addFormatFlag(cmd)
	return cmd
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [query]",
		Short: "Search, then answer a research question from the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			question, _ := cmd.Flags().GetString("question")
			question = strings.TrimSpace(question)
			if question == "" {
				return domain.NewValidationError("question", "please enter a question")
			}
			return c.runAnalysis(cmd, args, "analysis", func(a analysisRun) (string, error) {
				return a.analyst.AnalyzeResearch(cmd.Context(), a.records, question)
			})
		},
	}
	addSearchFlags(cmd)
	cmd.Flags().String("question", "", "research question to answer")
	addFormatFlag(cmd)
	return cmd
}

func newSummarizeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [query]",
		Short: "Search, then summarize the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalysis(cmd, args, "summary", func(a analysisRun) (string, error) {
				return a.analyst.SummarizeArticles(cmd.Context(), a.records)
			})
		},
	}
	addSearchFlags(cmd)
	addFormatFlag(cmd)
	return cmd
}

func newCompareCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [query]",
		Short: "Search, then compare two treatments using the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _ := cmd.Flags().GetString("treatment-a")
			b, _ := cmd.Flags().GetString("treatment-b")
			a, b = strings.TrimSpace(a), strings.TrimSpace(b)
			if a == "" || b == "" {
				return domain.NewValidationError("treatment", "please provide both treatments to compare")
			}
			return c.runAnalysis(cmd, args, "comparison", func(run analysisRun) (string, error) {
				return run.analyst.CompareTreatments(cmd.Context(), run.records, a, b)
			})
		},
	}
	addSearchFlags(cmd)
	cmd.Flags().String("treatment-a", "", "first treatment")
	cmd.Flags().String("treatment-b", "", "second treatment")
	addFormatFlag(cmd)
	return cmd
}

type analysisRun struct {
	analyst analyst
	records []domain.ArticleRecord
}

// runAnalysis builds the analyst, resolves the query and writes what fn returns
// under the given output key.
func (c *cli) runAnalysis(cmd *cobra.Command, args []string, key string, fn func(analysisRun) (string, error)) error {
	format, err := parseFormat(cmd)
	if err != nil {
		return err
	}
	a, err := c.deps.newAnalyst(c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("%w: research analysis unavailable: %w", domain.ErrServiceUnavailable, err)
	}
	records, err := c.resolve(cmd, args)
	if err != nil {
		return err
	}

	text, err := fn(analysisRun{analyst: a, records: records})
	if err != nil {
		return fmt.Errorf("error communicating with AI service: %w", err)
	}
	return writeText(cmd.OutOrStdout(), format, key, text, records)
}

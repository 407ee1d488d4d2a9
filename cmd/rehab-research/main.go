// Package main is the entry point for the rehab-research command line client.
// It runs the search pipeline and the research analyzer in-process, without the
// HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/rehab-research-service/internal/analysis"
	"github.com/helixir/rehab-research-service/internal/app"
	"github.com/helixir/rehab-research-service/internal/config"
	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/observability"
	"github.com/helixir/rehab-research-service/internal/pipeline"
)

// version is set at build time via ldflags.
var version = "dev"

// searcher resolves a query into enriched article records.
type searcher interface {
	Run(ctx context.Context, query string, bound int) pipeline.Result
}

// analyst asks the LLM about a set of resolved records.
type analyst interface {
	AnalyzeResearch(ctx context.Context, records []domain.ArticleRecord, question string) (string, error)
	SummarizeArticles(ctx context.Context, records []domain.ArticleRecord) (string, error)
	CompareTreatments(ctx context.Context, records []domain.ArticleRecord, treatmentA, treatmentB string) (string, error)
}

var (
	_ searcher = (*pipeline.Pipeline)(nil)
	_ analyst  = (*analysis.Analyzer)(nil)
)

// deps builds the components a command needs. Tests replace it with fakes.
type deps struct {
	loadConfig  func(path string) (*config.Config, error)
	newSearcher func(cfg *config.Config, logger zerolog.Logger) searcher
	newAnalyst  func(cfg *config.Config, logger zerolog.Logger) (analyst, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.LoadFile,
		newSearcher: func(cfg *config.Config, logger zerolog.Logger) searcher {
			return app.NewPipeline(cfg, logger, nil)
		},
		newAnalyst: func(cfg *config.Config, logger zerolog.Logger) (analyst, error) {
			a, err := app.NewAnalyzer(cfg.LLM, logger, nil)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	}
}

// cli carries state shared by every subcommand once the root command has run.
type cli struct {
	deps   deps
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd(d deps) *cobra.Command {
	c := &cli{deps: d, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "rehab-research",
		Short: "Search rehabilitation literature on PubMed and analyze it with an LLM",
		Long: `rehab-research searches PubMed for rehabilitation articles, enriches each
result with keywords and MeSH terms from its detail page, and can ask an LLM to
analyze, summarize or compare the findings.

Configuration is read like the server's: a YAML config file plus
REHABRESEARCH_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := c.deps.loadConfig(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg

			verbose, _ := cmd.Flags().GetBool("verbose")
			logCfg := app.LoggingConfig(cfg.Logging)
			logCfg.Output = "stderr"
			logCfg.Format = "console"
			if !verbose {
				logCfg.Level = "warn"
			}
			c.logger = observability.NewLogger(logCfg)
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "config file (default: ./config.yaml or /etc/rehab-research-service/config.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log pipeline progress to stderr")

	root.AddCommand(
		newSearchCmd(c),
		newAnalyzeCmd(c),
		newSummarizeCmd(c),
		newCompareCmd(c),
	)
	return root
}

func execute(ctx context.Context, d deps, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(d)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, defaultDeps(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

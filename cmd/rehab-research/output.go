package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixir/rehab-research-service/internal/domain"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// Widths of the truncated table columns, in terminal cells.
const (
	journalWidth = 32
	titleWidth   = 72
)

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "o", formatTable, "output format: table, json or yaml")
}

func parseFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeRecords renders search results.
func writeRecords(w io.Writer, format string, records []domain.ArticleRecord) error {
	switch format {
	case formatJSON:
		return writeJSON(w, map[string]any{"articles": records, "count": len(records)})
	case formatYAML:
		return writeYAML(w, map[string]any{"articles": records, "count": len(records)})
	default:
		_, err := io.WriteString(w, renderTable(records))
		return err
	}
}

// writeText renders an analysis result under key, followed by the articles it drew on.
func writeText(w io.Writer, format, key, text string, records []domain.ArticleRecord) error {
	switch format {
	case formatJSON:
		return writeJSON(w, map[string]any{key: text, "articles": records})
	case formatYAML:
		return writeYAML(w, map[string]any{key: text, "articles": records})
	default:
		_, err := fmt.Fprintf(w, "%s\n\nSources:\n%s", strings.TrimSpace(text), renderTable(records))
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// renderTable lays records out in aligned columns. Widths are measured in
// terminal cells so titles with wide characters still line up.
func renderTable(records []domain.ArticleRecord) string {
	rows := [][]string{{"PMID", "YEAR", "JOURNAL", "TITLE"}}
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Year,
			runewidth.Truncate(r.Journal, journalWidth, "..."),
			runewidth.Truncate(r.Title, titleWidth, "..."),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

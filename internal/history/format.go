package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// Output formats for WriteRun.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

const listTimeLayout = "2006-01-02 15:04"

// WriteList prints runs as a table, or as a JSON array when asJSON is set.
func WriteList(w io.Writer, runs []types.Run, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []types.Run{}
		}
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-6s  %-16s  %-6s  %5s  %s\n", "ID", "Kind", "Started", "Status", "Pages", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-6s  %-16s  %-6s  %5d  %s\n",
			shortID(r.ID), r.Kind, r.StartedAt.Local().Format(listTimeLayout), r.Status, r.Pages, r.Source)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// WriteRun prints one run with its records in the given format.
func WriteRun(w io.Writer, run *types.Run, format string) error {
	switch strings.ToLower(format) {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case FormatTable, "":
		writeRunTable(w, run)
		return nil
	default:
		return fmt.Errorf("unknown format %q: use table, yaml, or json", format)
	}
}

func writeRunTable(w io.Writer, run *types.Run) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Kind:     %s\n", run.Kind)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "Source:   %s\n", run.Source)
	fmt.Fprintf(w, "Melded:   %s\n", run.MeldedPath)
	fmt.Fprintf(w, "Key file: %s\n", run.KeyPath)
	fmt.Fprintf(w, "Pages:    %d\n", run.Pages)
	if run.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", run.Message)
	}
	if len(run.Records) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%-4s  %-30s  %-24s  %5s  %5s  %s\n", "Seq", "Submission", "File", "Start", "Pages", "Output")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range run.Records {
		fmt.Fprintf(w, "%-4d  %-30s  %-24s  %5d  %5d  %s\n",
			r.Seq, clip(r.SubmissionKey, 30), clip(r.SourceFile, 24), r.StartPage+1, r.PageCount, r.OutputPath)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

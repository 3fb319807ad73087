package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/collision"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/history"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/unmeld"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

var unmeldCmd = &cobra.Command{
	Use:   "unmeld <melded.pdf>",
	Short: "Split a marked melded PDF back into per-student files",
	Long: `Unmeld reads the key file next to <melded.pdf> row by row and cuts the
next page-count pages off the document for each row, writing them to
Unmelded/<submission>/<file>.pdf. Rows that cannot be parsed are reported and
skipped without consuming pages. If the key file asks for more pages than the
document has, unmeld stops at that row and keeps what it already wrote.

With --watch, unmeld runs again every time the melded PDF is saved, so
marked work can be returned while marking continues.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnmeld,
}

func init() {
	unmeldCmd.Flags().String("key-file", "", "key file (default: key_file.csv next to the melded PDF)")
	unmeldCmd.Flags().String("output-dir", "", "where to write unmelded files (default: Unmelded next to the melded PDF)")
	unmeldCmd.Flags().String("initials", "", "marker's initials, stamped on the first page of every file")
	unmeldCmd.Flags().Int("max-name-chars", types.DefaultMaxNameChars, "truncate output file names to this many characters")
	unmeldCmd.Flags().Bool("zip", true, "also archive the output folder as a .zip")
	unmeldCmd.Flags().String("collision", "prompt", "when an output file exists: overwrite, skip, fail, prompt")
	unmeldCmd.Flags().Bool("watch", false, "unmeld again whenever the melded PDF changes")
	unmeldCmd.Flags().Duration("debounce", unmeld.DefaultDebounce, "with --watch, wait this long after the last change")

	rootCmd.AddCommand(unmeldCmd)
}

func runUnmeld(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"unmeld.initials":       "initials",
		"unmeld.max_name_chars": "max-name-chars",
		"unmeld.zip":            "zip",
		"collision":             "collision",
	}); err != nil {
		return err
	}

	policy, err := collision.Parse(viper.GetString("collision"))
	if err != nil {
		return err
	}
	keyFile, _ := cmd.Flags().GetString("key-file")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	cfg := types.UnmeldConfig{
		MeldedPath:   args[0],
		KeyFilePath:  keyFile,
		OutputDir:    outputDir,
		Initials:     viper.GetString("unmeld.initials"),
		MaxNameChars: viper.GetInt("unmeld.max_name_chars"),
		Zip:          viper.GetBool("unmeld.zip"),
		Collision:    policy,
	}

	out := newStatus(cmd)
	pdf := unmeld.Library(pdfdoc.New())
	opts := unmeld.Options{Status: out, Confirm: confirmer()}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		return unmeld.Watch(cmd.Context(), pdf, cfg, unmeld.WatchOptions{
			Options:  opts,
			Debounce: debounce,
			OnRun: func(sum *unmeld.Summary, runErr error) {
				recordUnmeld(out, cfg, sum, runErr)
			},
		})
	}

	sum, runErr := unmeld.Unmeld(cmd.Context(), pdf, cfg, opts)
	recordUnmeld(out, cfg, sum, runErr)
	return runErr
}

func recordUnmeld(out *status.Printer, cfg types.UnmeldConfig, sum *unmeld.Summary, runErr error) {
	record(out, func(h *history.Store) (string, error) {
		return h.RecordUnmeld(context.Background(), cfg, sum, runErr)
	})
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded meld and unmeld runs",
	Long: `History lists past runs from the run ledger, newest first. Use
"history show <id>" to see one run's key file rows and output paths; an ID
prefix is enough when it is unique.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")

	historyShowCmd.Flags().String("format", history.FormatTable, "output format: table, yaml, json")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	h, err := history.Open(historyPath())
	if err != nil {
		return err
	}
	defer h.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := h.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return history.WriteList(cmd.OutOrStdout(), runs, jsonOutput)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	h, err := history.Open(historyPath())
	if err != nil {
		return err
	}
	defer h.Close()

	run, err := h.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	return history.WriteRun(cmd.OutOrStdout(), run, format)
}

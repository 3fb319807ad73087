package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/collision"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/history"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/meld"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

var meldCmd = &cobra.Command{
	Use:   "meld <submissions-folder>",
	Short: "Combine every submission into one PDF for marking",
	Long: `Meld walks the submission folders under <submissions-folder> in name
order and appends each folder's PDFs to a single melded document. A key file
records the submission, file name, and page count of every PDF appended, in
order; unmeld needs it to cut the marked document apart again.

Both files are written next to <submissions-folder> unless --output-dir is
given. The key file is written last, so a failed run never leaves a key file
that disagrees with the melded document.`,
	Args: cobra.ExactArgs(1),
	RunE: runMeld,
}

func init() {
	meldCmd.Flags().String("output-dir", "", "where to write the melded PDF and key file (default: parent of the submissions folder)")
	meldCmd.Flags().String("melded-name", types.DefaultMeldedFileName, "melded PDF file name")
	meldCmd.Flags().String("key-name", types.DefaultKeyFileName, "key file name")
	meldCmd.Flags().String("naming", "auto", "folder naming scheme: auto, name-id, id-name")
	meldCmd.Flags().Bool("labels", true, "stamp the first page of every file with the student's ID")
	meldCmd.Flags().Bool("show-names", true, "include the student's name in the label")
	meldCmd.Flags().Int("max-files", types.DefaultMaxFiles, "skip submission folders holding more files than this")
	meldCmd.Flags().Float64("scale-width", types.DefaultScaleWidth, "scale every melded page to this width in points (0 keeps original sizes)")
	meldCmd.Flags().Int("annotation-warning", types.DefaultAnnotationWarning, "warn when a file's first page has more annotations than this")
	meldCmd.Flags().String("collision", "prompt", "when the melded PDF exists: overwrite, skip, fail, prompt")

	rootCmd.AddCommand(meldCmd)
}

func runMeld(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"naming.scheme":           "naming",
		"meld.labels":             "labels",
		"meld.show_names":         "show-names",
		"meld.max_files":          "max-files",
		"meld.scale_width":        "scale-width",
		"meld.annotation_warning": "annotation-warning",
		"collision":               "collision",
	}); err != nil {
		return err
	}

	cfg, err := meldConfig(cmd, args[0])
	if err != nil {
		return err
	}

	out := newStatus(cmd)
	result, runErr := meld.Meld(cmd.Context(), pdfdoc.New(), cfg, meld.Options{
		Status:  out,
		Confirm: confirmer(),
	})

	record(out, func(h *history.Store) (string, error) {
		return h.RecordMeld(context.Background(), cfg, result, runErr)
	})
	if runErr != nil {
		return runErr
	}

	if out.Warnings() > 0 {
		out.Infof("%d warnings; check the folders above before marking", out.Warnings())
	}
	return nil
}

func meldConfig(cmd *cobra.Command, root string) (types.MeldConfig, error) {
	policy, err := collision.Parse(viper.GetString("collision"))
	if err != nil {
		return types.MeldConfig{}, err
	}
	outputDir, _ := cmd.Flags().GetString("output-dir")
	meldedName, _ := cmd.Flags().GetString("melded-name")
	keyName, _ := cmd.Flags().GetString("key-name")

	cfg := types.MeldConfig{
		RootDir:        root,
		OutputDir:      outputDir,
		MeldedFileName: meldedName,
		KeyFileName:    keyName,
		Naming:         types.NamingScheme(viper.GetString("naming.scheme")),
		Labels:         viper.GetBool("meld.labels"),
		ShowNames:      viper.GetBool("meld.show_names"),
		MaxFiles:       viper.GetInt("meld.max_files"),
		ScaleWidth:     viper.GetFloat64("meld.scale_width"),
		Collision:      policy,

		AnnotationWarning: viper.GetInt("meld.annotation_warning"),
	}
	if cfg.ScaleWidth < 0 {
		return types.MeldConfig{}, fmt.Errorf("scale width must not be negative, got %g", cfg.ScaleWidth)
	}
	if cfg.MeldedFileName == cfg.KeyFileName {
		return types.MeldConfig{}, fmt.Errorf("melded PDF and key file cannot share the name %q", cfg.KeyFileName)
	}
	return cfg, nil
}

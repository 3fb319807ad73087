// Package main is the entry point for the moodlemeld CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/collision"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/history"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the moodlemeld CLI.
var rootCmd = &cobra.Command{
	Use:   "moodlemeld",
	Short: "Meld Moodle submissions into one PDF for marking, then unmeld them",
	Long: `moodlemeld combines every student's submitted PDFs into a single melded
document so a whole batch can be marked in one sitting, and writes a key file
recording which pages came from which submission. After marking, unmeld uses
the key file to cut the annotated document back into one PDF per source file,
ready to upload as feedback.

Folder layout follows Moodle's "download all submissions" export: one
subfolder per student, each holding that student's PDFs.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./moodlemeld.yaml or ~/.config/moodlemeld/moodlemeld.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print per-file detail")
	rootCmd.PersistentFlags().String("history", "", "run history database (default: ~/.config/moodlemeld/history.db)")
	rootCmd.PersistentFlags().Bool("no-history", false, "do not record this run in the history database")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("history.path", rootCmd.PersistentFlags().Lookup("history"))
	viper.BindPFlag("history.disabled", rootCmd.PersistentFlags().Lookup("no-history"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("moodlemeld")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "moodlemeld"))
		}
	}

	viper.SetEnvPrefix("MOODLEMELD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers the value of every key a command reads when neither
// a flag, the environment, nor the config file sets it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("naming.scheme", "auto")
	v.SetDefault("meld.labels", true)
	v.SetDefault("meld.show_names", true)
	v.SetDefault("meld.max_files", 9)
	v.SetDefault("meld.scale_width", 595)
	v.SetDefault("meld.annotation_warning", 5)
	v.SetDefault("unmeld.zip", true)
	v.SetDefault("unmeld.max_name_chars", 20)
	v.SetDefault("collision", "prompt")
}

// bindFlags binds the named flags of cmd to viper keys. Commands bind when
// they run, not in init, because several commands share keys such as
// collision and only the running command's flags may win.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %s", flag, key)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding %s: %w", flag, err)
		}
	}
	return nil
}

// newStatus returns the printer commands report progress through.
func newStatus(cmd *cobra.Command) *status.Printer {
	return status.New(cmd.OutOrStdout(), viper.GetBool("verbose"))
}

// confirmer prompts on the terminal; it refuses when stdin is not a TTY.
func confirmer() collision.Confirmer {
	return collision.Terminal{In: os.Stdin, Out: os.Stderr}
}

func historyPath() string {
	if p := viper.GetString("history.path"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".moodlemeld", "history.db")
	}
	return filepath.Join(dir, "moodlemeld", "history.db")
}

// record stores a run in the history ledger. The ledger is a convenience:
// failing to write it is a warning, never a failed run.
func record(out *status.Printer, store func(*history.Store) (string, error)) {
	if viper.GetBool("history.disabled") {
		return
	}
	h, err := history.Open(historyPath())
	if err != nil {
		out.Warnf("run history unavailable: %v", err)
		return
	}
	defer h.Close()

	id, err := store(h)
	if err != nil {
		out.Warnf("recording run history: %v", err)
		return
	}
	out.Debugf("recorded run %s", id)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

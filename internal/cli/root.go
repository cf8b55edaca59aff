// Package cli implements the chartcode command line
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartcode/internal/config"
	"github.com/ppiankov/chartcode/internal/model"
)

// Version is set at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool

	// cfg is the effective configuration, loaded before any subcommand runs.
	cfg *model.Config
)

var rootCmd = &cobra.Command{
	Use:   "chartcode",
	Short: "chartcode - clinical fact extraction and code reconciliation",
	Long: `chartcode extracts conditions, medications and vital signs from clinical
notes and reconciles model-suggested codes against RxNorm and ICD-10-CM.

Ask for what you need in plain language:

  chartcode ask "codes for doc 1, 2, and 3"
  chartcode chat

Each fact carries a confidence tier: high when the suggested and validated
codes agree, medium when only one source has a code, low otherwise.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		if err := config.InitLogger(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chartcode %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.chartcode/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// warnf prints a user-facing warning to stderr
func warnf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", a...)
}

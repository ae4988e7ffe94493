package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Show import and extraction pipeline",
	Long:  "Turns pasted text, forwarded emails, spreadsheets and extracted documents into reviewable show candidates with per-field confidence and duplicate hints.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/showdeck/importer/internal/model"
)

var (
	importOrg   string
	importMode  string
	importPaste string
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Run an import from local files or pasted text",
	Long:  "Runs the full pipeline inline and prints the resulting job as JSON. Accepts .xlsx spreadsheets, .eml emails, and plain-text files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importPaste == "" && len(args) == 0 {
			return eris.New("provide file paths or --text")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		var sources []model.RawSource
		if importPaste != "" {
			sources = append(sources, env.Builder.FromPasted(importPaste))
		}
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			name := filepath.Base(path)
			switch strings.ToLower(filepath.Ext(path)) {
			case ".xlsx":
				src, err := env.Builder.FromSpreadsheet(name, data)
				if err != nil {
					return err
				}
				sources = append(sources, src)
			case ".eml":
				sources = append(sources, env.Builder.FromEmail(string(data)))
			default:
				sources = append(sources, env.Builder.FromFileText(name, "", int64(len(data)), string(data), 0))
			}
		}

		job, err := env.Orchestrator.Start(ctx, importOrg, sources, model.ExtractionMode(importMode))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	importCmd.Flags().StringVar(&importOrg, "org", "default", "organization ID")
	importCmd.Flags().StringVar(&importMode, "mode", "heuristic", "extraction mode (heuristic or ai_assisted)")
	importCmd.Flags().StringVar(&importPaste, "text", "", "pasted text to import")
	rootCmd.AddCommand(importCmd)
}

// Command rag answers questions over a local document corpus using
// retrieval-augmented generation.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragqa/internal/config"
	"ragqa/internal/logging"
)

var version = "dev"

var (
	cfgPath  string
	logLevel string
)

// globals resolved in PersistentPreRunE
var (
	cfg    *config.AppConfig
	logger *zap.Logger
)

func main() {
	_ = godotenv.Load()
	err := rootCmd.Execute()
	if logger != nil {
		_ = logging.Sync(logger)
	}
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Retrieval-augmented question answering over local documents",
	Long: `rag embeds a small document corpus, indexes it in a vector store,
retrieves the passages closest to a question and asks a generator to
answer from them.

Configuration is read from --config, ./config.yaml or
~/.config/rag/config.yaml, and RAG_* environment variables override it
(RAG_GENERATOR__TYPE=openai).`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["skipConfig"] == "true" {
			return nil
		}
		var err error
		if cfgPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.AddCommand(askCmd, searchCmd, tuiCmd, serveCmd, demoCmd, configCmd)
}

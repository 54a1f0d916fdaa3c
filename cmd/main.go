package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kovalyov-valentin/crypto-intel/internal/config"
	"github.com/kovalyov-valentin/crypto-intel/internal/logging"
)

func main() {
	var (
		cfg         config.Config
		configFiles []string
		logLevel    string
	)

	root := &cobra.Command{
		Use:   "crypto-intel",
		Short: "Crypto news ingestion and enrichment pipeline",
		Long:  "Collects crypto news from RSS feeds, classifies it and enriches it through a language model.",
		// Конфиг читаем до любой команды
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configFiles...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			cfg = loaded

			logging.Setup(cfg.LogLevel)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringSliceVar(&configFiles, "config", []string{"./config.hcl", "./config.local.hcl"}, "Config files, later ones override earlier")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(
		serveCmd(&cfg),
		fetchCmd(&cfg),
		analyzeCmd(&cfg),
		requeueCmd(&cfg),
		pruneCmd(&cfg),
		clearCmd(&cfg),
		testSourceCmd(&cfg),
		rewriteCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Package cmd defines and implements the CLI commands for the taxcrawler
// executable.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/logging"
	"github.com/taxrag/tax-rag-crawler/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxcrawler",
		Short: "Harvests Canadian tax documents into a vector store.",
		Long: `taxcrawler walks a configured family of Canadian government tax
sources (the Income Tax Act, Department of Finance publications, CRA forms),
extracts the text, and ingests it as embeddings for retrieval-augmented
question answering.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(func() {
		config.InitConfig(cfgFile, logging.L)
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/taxcrawler, $HOME/.taxcrawler)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	logging.Init()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("command execution failed", zap.Error(err))
	}
}

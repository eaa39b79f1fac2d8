// Package config initializes the application's configuration. It uses the
// Viper library to read settings from a config file and environment
// variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitConfig sets up defaults, config file resolution, and environment
// variable binding. Call it once at startup, before any package reads
// configuration. A non-empty cfgFile pins an explicit config file;
// otherwise the standard search paths apply.
func InitConfig(cfgFile string, logger *zap.Logger) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/taxcrawler/")
		viper.AddConfigPath("$HOME/.taxcrawler")
	}

	// No crawler.* defaults here: site profiles carry the politeness
	// baseline, and IsSet would treat a default as an operator override.

	// Ingest pipeline.
	viper.SetDefault("ingest.use_qdrant", true)
	viper.SetDefault("ingest.embedding_batch_size", 16)
	viper.SetDefault("ingest.chunk_size", 800)
	viper.SetDefault("ingest.chunk_overlap", 100)
	viper.SetDefault("ingest.local_store_dir", "data/documents")

	// Optional side channels, all off unless configured.
	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.bucket", "")
	viper.SetDefault("archive.local_dir", "data/archive")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("pubsub.project_id", "")
	viper.SetDefault("pubsub.topic_id", "")

	// Operational surface.
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("metrics.log_path", "data/metrics/crawl_metrics.jsonl")

	// e.g. TAXRAG_INGEST_USE_QDRANT=false
	viper.SetEnvPrefix("TAXRAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("config file not found; using defaults and environment variables")
		} else {
			logger.Error("error reading config file", zap.Error(err))
		}
	} else {
		logger.Info("using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitConfigExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ingest:\n  embedding_batch_size: 4\n"), 0o644))

	InitConfig(path, zap.NewNop())

	require.Equal(t, path, viper.ConfigFileUsed(), "--config pins the file instead of the search paths")
	require.Equal(t, 4, viper.GetInt("ingest.embedding_batch_size"))
}

func TestInitConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	InitConfig("", zap.NewNop())

	require.True(t, viper.GetBool("ingest.use_qdrant"))
	require.Equal(t, 16, viper.GetInt("ingest.embedding_batch_size"))
	require.False(t, viper.IsSet("crawler.max_depth"), "no politeness defaults that would shadow profile values")
}

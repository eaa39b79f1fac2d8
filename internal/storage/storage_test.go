package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalProviderSave(t *testing.T) {
	base := t.TempDir()
	p, err := NewLocalProvider(base)
	require.NoError(t, err)
	defer p.Close()

	uri, err := p.Save(context.Background(), "pages/2026-08-29/abc.html", []byte("<html/>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "pages", "2026-08-29", "abc.html"))
	require.NoError(t, err)
	require.Equal(t, []byte("<html/>"), data)
}

func TestLocalProviderCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := NewLocalProvider(base)
	require.NoError(t, err)
	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLocalProviderRejectsEmptyBase(t *testing.T) {
	_, err := NewLocalProvider("  ")
	require.Error(t, err)
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider()
	uri, err := p.Save(context.Background(), "pages/x.html", []byte("snapshot"))
	require.NoError(t, err)
	require.Equal(t, "memory://pages/x.html", uri)

	data, ok := p.Get("pages/x.html")
	require.True(t, ok)
	require.Equal(t, []byte("snapshot"), data)
	require.Equal(t, 1, p.Len())
	require.NoError(t, p.Close())
}

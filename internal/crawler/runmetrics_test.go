package crawler

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorderFinalize(t *testing.T) {
	r := NewRecorder("ita")
	r.Success()
	r.Success()
	r.Success()
	r.Failure()
	r.Skip()

	snap := r.Finalize()
	require.Equal(t, "ita", snap.CrawlType)
	require.Equal(t, 4, snap.URLsProcessed)
	require.Equal(t, 3, snap.SuccessfulRequests)
	require.Equal(t, 1, snap.FailedRequests)
	require.Equal(t, 1, snap.URLsSkipped, "robots skips stay out of the processed count")
	require.InDelta(t, 75.0, snap.SuccessRate, 0.001)
	require.Equal(t, snap.URLsProcessed, snap.SuccessfulRequests+snap.FailedRequests)
}

func TestRecorderEmptyRun(t *testing.T) {
	snap := NewRecorder("taxlaw").Finalize()
	require.Zero(t, snap.URLsProcessed)
	require.Zero(t, snap.SuccessRate, "no division by zero on an empty run")
}

func TestAppendMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "crawl_metrics.jsonl")

	first := NewRecorder("ita").Finalize()
	second := NewRecorder("taxlaw").Finalize()
	require.NoError(t, AppendMetrics(path, first))
	require.NoError(t, AppendMetrics(path, second))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []MetricsSnapshot
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var snap MetricsSnapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &snap))
		lines = append(lines, snap)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2, "one JSON line per run")
	require.Equal(t, "ita", lines[0].CrawlType)
	require.Equal(t, "taxlaw", lines[1].CrawlType)
}

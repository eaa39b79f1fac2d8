package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalDocumentSink is the local-only fallback used when the vector store
// is disabled: extracted records are written as one JSON file per document
// under the data directory, keyed by the deterministic point ID so repeat
// runs overwrite rather than accumulate.
type LocalDocumentSink struct {
	root   string
	logger *zap.Logger
}

// NewLocalDocumentSink creates the sink rooted at dir.
func NewLocalDocumentSink(root string, logger *zap.Logger) (*LocalDocumentSink, error) {
	if root == "" {
		return nil, fmt.Errorf("document sink root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	return &LocalDocumentSink{root: root, logger: logger}, nil
}

// SaveDocument writes one record. Idempotent on id.
func (s *LocalDocumentSink) SaveDocument(ctx context.Context, id string, record map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", id, err)
	}
	target := filepath.Join(s.root, id+".json")
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("write document %s: %w", target, err)
	}
	s.logger.Debug("document saved locally", zap.String("path", target))
	return nil
}

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taxrag/tax-rag-crawler/internal/crawler"
)

// pgxPool is the subset of pgxpool.Pool the provider uses; pgxmock
// implements it for tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresProvider writes run history to Postgres.
//
// Expected schema:
//
//	CREATE TABLE crawl_runs (
//	    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    crawl_type TEXT NOT NULL,
//	    started_at TIMESTAMPTZ NOT NULL,
//	    urls_processed INT NOT NULL,
//	    urls_skipped INT NOT NULL,
//	    successful_requests INT NOT NULL,
//	    failed_requests INT NOT NULL,
//	    success_rate DOUBLE PRECISION NOT NULL,
//	    duration_seconds DOUBLE PRECISION NOT NULL
//	);
//	CREATE TABLE crawl_documents (
//	    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    run_id UUID REFERENCES crawl_runs(id),
//	    url TEXT NOT NULL,
//	    title TEXT,
//	    point_ids TEXT[],
//	    archive_uri TEXT,
//	    fetched_at TIMESTAMPTZ NOT NULL
//	);
type PostgresProvider struct {
	pool pgxPool
}

// NewPostgresProvider connects to Postgres and pings it.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresProvider{pool: pool}, nil
}

// NewPostgresProviderWithPool constructs a provider from an existing pool,
// primarily for testing.
func NewPostgresProviderWithPool(pool pgxPool) (*PostgresProvider, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresProvider{pool: pool}, nil
}

// SaveRun inserts the run summary and returns the generated row ID.
func (p *PostgresProvider) SaveRun(ctx context.Context, snap crawler.MetricsSnapshot) (string, error) {
	query := `
		INSERT INTO crawl_runs (
			crawl_type, started_at, urls_processed, urls_skipped,
			successful_requests, failed_requests, success_rate, duration_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var runID string
	err := p.pool.QueryRow(ctx, query,
		snap.CrawlType,
		snap.Timestamp,
		snap.URLsProcessed,
		snap.URLsSkipped,
		snap.SuccessfulRequests,
		snap.FailedRequests,
		snap.SuccessRate,
		snap.DurationSeconds,
	).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("insert crawl run: %w", err)
	}
	return runID, nil
}

// SaveDocument inserts one document row.
func (p *PostgresProvider) SaveDocument(ctx context.Context, rec DocumentRecord) error {
	query := `
		INSERT INTO crawl_documents (run_id, url, title, point_ids, archive_uri, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := p.pool.Exec(ctx, query,
		rec.RunID,
		rec.URL,
		rec.Title,
		rec.PointIDs,
		rec.ArchiveURI,
		rec.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert crawl document: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresProvider) Close() {
	p.pool.Close()
}

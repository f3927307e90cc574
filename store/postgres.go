// Package store persists resolved fitment rows to PostgreSQL so results
// outlive the job that produced them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/report"
)

const writeTimeout = 10 * time.Second

// execer is the part of *sql.DB the sink writes through.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresStore owns the connection pool.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings and creates the schema.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns / 2)

	pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := ensureSchema(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Sink returns a report sink writing jobID's rows.
func (s *PostgresStore) Sink(jobID string) report.Sink {
	return newSink(s.db, jobID)
}

func ensureSchema(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fitment_rows (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL,
			part_number TEXT NOT NULL,
			manufacturer TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			make TEXT NOT NULL,
			model TEXT NOT NULL,
			start_year TEXT NOT NULL,
			end_year TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT '',
			extra TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (part_number, manufacturer, make, model, start_year, end_year)
		);
		CREATE INDEX IF NOT EXISTS idx_fitment_rows_part ON fitment_rows(part_number);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertRow = `
	INSERT INTO fitment_rows (job_id, part_number, manufacturer, category, make, model, start_year, end_year, position, extra)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (part_number, manufacturer, make, model, start_year, end_year) DO UPDATE
	SET
		job_id = EXCLUDED.job_id,
		category = EXCLUDED.category,
		position = EXCLUDED.position,
		extra = EXCLUDED.extra,
		updated_at = NOW()`

// PostgresSink upserts every finished vehicle. A re-run of the same
// listing replaces the earlier rows.
type PostgresSink struct {
	db      execer
	jobID   string
	listing models.Listing
}

func newSink(db execer, jobID string) *PostgresSink {
	return &PostgresSink{db: db, jobID: jobID}
}

func (s *PostgresSink) Begin(listing models.Listing, _ int) error {
	s.listing = listing
	return nil
}

func (s *PostgresSink) VehicleStarted(int, models.CompatibleVehicle) error { return nil }

func (s *PostgresSink) EngineProcessed(models.CompatibleVehicle, models.EngineResult) error {
	return nil
}

func (s *PostgresSink) VehicleFinished(row models.FitmentRow) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, upsertRow,
		s.jobID,
		s.listing.PartNumber,
		s.listing.Manufacturer,
		s.listing.Category,
		row.Make,
		row.Model,
		row.StartYear,
		row.EndYear,
		row.Position,
		row.Extra,
	)
	if err != nil {
		return fmt.Errorf("store fitment row %s %s: %w", row.Make, row.Model, err)
	}
	return nil
}

// VehicleFailed is a no-op: failures live in the job report and trace.
func (s *PostgresSink) VehicleFailed(models.CompatibleVehicle, error) error { return nil }

func (s *PostgresSink) Close() error { return nil }

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cyclescan/internal/config"
	"cyclescan/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	LogOpportunity(ctx context.Context, r model.ValuationResult) error
	RecentOpportunities(ctx context.Context, limit int) ([]model.ValuationResult, error)
	Migrate(ctx context.Context) error
}

// PostgresRepository stores qualifying valuations in PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database described by cfg and checks
// that it is reachable.
func NewPostgresRepository(ctx context.Context, cfg config.DatabaseConfig) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id             UUID PRIMARY KEY,
	cycle_id       VARCHAR(64) NOT NULL,
	path           TEXT[] NOT NULL,
	percent_return DOUBLE PRECISION NOT NULL,
	fee_rate       DOUBLE PRECISION NOT NULL,
	notional       DOUBLE PRECISION NOT NULL,
	final_amount   DOUBLE PRECISION NOT NULL,
	legs           JSONB NOT NULL,
	observed_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS opportunities_observed_at_idx ON opportunities (observed_at DESC);`

// Migrate creates the tables the repository needs.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// LogOpportunity inserts one qualifying valuation.
func (r *PostgresRepository) LogOpportunity(ctx context.Context, res model.ValuationResult) error {
	legs, err := json.Marshal(res.Legs)
	if err != nil {
		return fmt.Errorf("postgres: encode legs: %w", err)
	}
	path := make([]string, len(res.Path))
	for i, a := range res.Path {
		path[i] = string(a)
	}

	_, err = r.Pool.Exec(ctx, `
		INSERT INTO opportunities (id, cycle_id, path, percent_return, fee_rate, notional, final_amount, legs, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), res.CycleID, path, res.PercentReturn, res.FeeRate, res.Notional, res.FinalAmount, legs, res.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity: %w", err)
	}
	return nil
}

// RecentOpportunities returns up to limit valuations, newest first.
func (r *PostgresRepository) RecentOpportunities(ctx context.Context, limit int) ([]model.ValuationResult, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT cycle_id, path, percent_return, fee_rate, notional, final_amount, legs, observed_at
		FROM opportunities
		ORDER BY observed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query opportunities: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ValuationResult, error) {
		var (
			res  model.ValuationResult
			path []string
			legs []byte
		)
		if err := row.Scan(&res.CycleID, &path, &res.PercentReturn, &res.FeeRate, &res.Notional, &res.FinalAmount, &legs, &res.ObservedAt); err != nil {
			return res, err
		}
		res.Path = make([]model.Asset, len(path))
		for i, a := range path {
			res.Path[i] = model.Asset(a)
		}
		if err := json.Unmarshal(legs, &res.Legs); err != nil {
			return res, fmt.Errorf("decode legs: %w", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return out, nil
}

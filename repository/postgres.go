package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS pinned_stops (
		owner       TEXT PRIMARY KEY,
		payload     JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresPinRepository stores pinned stop documents in PostgreSQL
type PostgresPinRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPinRepository connects to databaseURL and ensures the table exists
func NewPostgresPinRepository(ctx context.Context, databaseURL string) (*PostgresPinRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Println("Connected to PostgreSQL database")
	return &PostgresPinRepository{pool: pool}, nil
}

// Close closes the connection pool
func (r *PostgresPinRepository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *PostgresPinRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// LoadPins returns the stored document, or nil when the owner has none
func (r *PostgresPinRepository) LoadPins(ctx context.Context, owner string) ([]byte, error) {
	if owner == "" {
		return nil, errors.New("owner cannot be empty")
	}

	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload::text FROM pinned_stops WHERE owner = $1`, owner).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query pinned stops: %w", err)
	}
	return payload, nil
}

// SavePins replaces the owner's document
func (r *PostgresPinRepository) SavePins(ctx context.Context, owner string, payload []byte) error {
	if owner == "" {
		return errors.New("owner cannot be empty")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO pinned_stops (owner, payload, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (owner) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, owner, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save pinned stops: %w", err)
	}
	return nil
}

// DeletePins removes the owner's document
func (r *PostgresPinRepository) DeletePins(ctx context.Context, owner string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM pinned_stops WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("failed to delete pinned stops: %w", err)
	}
	return nil
}

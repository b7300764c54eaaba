package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteDB wraps a SQL database connection for SQLite with write serialization
type SQLiteDB struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteDB opens (and creates) the database at dbPath and ensures the schema
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteDB{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Connected to SQLite database: %s", dbPath)
	return s, nil
}

// EnsureSchema creates tables if they don't exist
func (s *SQLiteDB) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetDB returns the underlying database connection
func (s *SQLiteDB) GetDB() *sql.DB {
	return s.db
}

// SQLitePinRepository stores pinned stop documents in SQLite
type SQLitePinRepository struct {
	db *SQLiteDB
}

// NewSQLitePinRepository creates a new SQLitePinRepository
func NewSQLitePinRepository(db *SQLiteDB) *SQLitePinRepository {
	return &SQLitePinRepository{db: db}
}

// LoadPins returns the stored document, or nil when the owner has none
func (r *SQLitePinRepository) LoadPins(ctx context.Context, owner string) ([]byte, error) {
	if owner == "" {
		return nil, errors.New("owner cannot be empty")
	}

	var payload string
	err := r.db.db.QueryRowContext(ctx, `SELECT payload FROM pinned_stops WHERE owner = ?`, owner).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query pinned stops: %w", err)
	}
	return []byte(payload), nil
}

// SavePins replaces the owner's document
func (r *SQLitePinRepository) SavePins(ctx context.Context, owner string, payload []byte) error {
	if owner == "" {
		return errors.New("owner cannot be empty")
	}

	r.db.writeMu.Lock()
	defer r.db.writeMu.Unlock()

	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO pinned_stops (owner, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, owner, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save pinned stops: %w", err)
	}
	return nil
}

// DeletePins removes the owner's document
func (r *SQLitePinRepository) DeletePins(ctx context.Context, owner string) error {
	r.db.writeMu.Lock()
	defer r.db.writeMu.Unlock()

	if _, err := r.db.db.ExecContext(ctx, `DELETE FROM pinned_stops WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("failed to delete pinned stops: %w", err)
	}
	return nil
}

// SQLiteShapeStore persists raw shape GeoJSON so restarts don't refetch every line
type SQLiteShapeStore struct {
	db *SQLiteDB
}

// NewSQLiteShapeStore creates a new SQLiteShapeStore
func NewSQLiteShapeStore(db *SQLiteDB) *SQLiteShapeStore {
	return &SQLiteShapeStore{db: db}
}

// GetShape returns the stored GeoJSON and when it was fetched, or nil when absent
func (s *SQLiteShapeStore) GetShape(ctx context.Context, shapeID int) ([]byte, time.Time, error) {
	var (
		data      string
		fetchedAt string
	)
	err := s.db.db.QueryRowContext(ctx, `SELECT geojson, fetched_at FROM route_shapes WHERE shape_id = ?`, shapeID).Scan(&data, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("failed to query shape %d: %w", shapeID, err)
	}
	t, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("invalid fetched_at for shape %d: %w", shapeID, err)
	}
	return []byte(data), t, nil
}

// PutShape stores the GeoJSON for a shape
func (s *SQLiteShapeStore) PutShape(ctx context.Context, shapeID int, data []byte, fetchedAt time.Time) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO route_shapes (shape_id, geojson, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(shape_id) DO UPDATE SET
			geojson = excluded.geojson,
			fetched_at = excluded.fetched_at
	`, shapeID, string(data), fetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save shape %d: %w", shapeID, err)
	}
	return nil
}

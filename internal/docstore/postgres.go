package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"quorum/api/internal/util"
)

// PostgresStore implements Store on a single JSONB documents table.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			fields     JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS documents_collection_created_at
		ON documents (collection, created_at)`)
	if err != nil {
		return fmt.Errorf("create documents index: %w", err)
	}
	return nil
}

func createdAtTime(fields map[string]any) time.Time {
	createdAt := Time(fields, "createdAt")
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return createdAt
}

func (s *PostgresStore) CreateDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := util.NewID("")
	if err := s.SetDocument(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) SetDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET fields = EXCLUDED.fields`,
		collection, id, data, createdAtTime(fields))
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, collection, id string) (map[string]any, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
	}
	return fields, nil
}

func (s *PostgresStore) QueryDocuments(ctx context.Context, q Query) ([]Document, error) {
	query := `SELECT id, fields FROM documents WHERE collection = $1`
	args := []any{q.Collection}
	if q.FilterField != "" {
		query += fmt.Sprintf(" AND fields->>$%d = $%d", len(args)+1, len(args)+2)
		args = append(args, q.FilterField, q.FilterValue)
	}
	if q.Descending {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY created_at ASC"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents %s: %w", q.Collection, err)
	}
	defer rows.Close()

	results := []Document{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal document %s/%s: %w", q.Collection, id, err)
		}
		results = append(results, Document{ID: id, Fields: fields})
	}
	return results, rows.Err()
}

// RunTransaction locks the document row for the duration of the update.
// Row locking makes conflicts rare, but serialization failures can still
// surface under load; those retry like the Redis backend's WATCH failures.
func (s *PostgresStore) RunTransaction(ctx context.Context, collection, id string, update UpdateFunc) error {
	for attempt := 0; attempt < txAttempts; attempt++ {
		err := s.runTransactionOnce(ctx, collection, id, update)
		if isSerializationFailure(err) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *PostgresStore) runTransactionOnce(ctx context.Context, collection, id string, update UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document %s/%s: %w", collection, id, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
	}

	updated, err := update(fields)
	if err != nil {
		return err
	}

	data, err = json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET fields = $3 WHERE collection = $1 AND id = $2`,
		collection, id, data)
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (s *PostgresStore) CountDocuments(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE collection = $1`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents %s: %w", collection, err)
	}
	return count, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"onsetscore/internal/modules/session/domain"
	sessionout "onsetscore/internal/modules/session/port/out"
	apperrors "onsetscore/internal/platform/errors"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the same JSON document as FileRepository, one row
// per (rater, dataset).
type SQLiteRepository struct {
	db *sql.DB
}

var _ sessionout.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &SQLiteRepository{db: db}
	if err := repo.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  rater_id TEXT NOT NULL,
  dataset_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  schema_version INTEGER NOT NULL,
  payload TEXT NOT NULL,
  saved_at TEXT NOT NULL,
  PRIMARY KEY (rater_id, dataset_id)
);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Save(ctx context.Context, session *domain.Session) error {
	payload, err := domain.Encode(session)
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO sessions (rater_id, dataset_id, session_id, schema_version, payload, saved_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(rater_id, dataset_id) DO UPDATE SET
  session_id=excluded.session_id,
  schema_version=excluded.schema_version,
  payload=excluded.payload,
  saved_at=excluded.saved_at;
`
	if _, err := r.db.ExecContext(ctx, stmt,
		session.RaterID,
		session.DatasetID,
		session.SessionID,
		session.SchemaVersion,
		string(payload),
		session.LastSaved.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context, raterID, datasetID string) (*domain.Session, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE rater_id = ? AND dataset_id = ?`,
		raterID, datasetID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s/%s: %w", raterID, datasetID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return domain.Decode([]byte(payload))
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

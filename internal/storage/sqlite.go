package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// SQLiteStore is a Store backed by a single SQLite file. Boundary and path
// arrays are stored as JSON so restored values are identical to what was
// written.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		hash TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		upload_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS records (
		hash TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('face','verso')),
		version INTEGER NOT NULL,
		grid_rows INTEGER NOT NULL,
		grid_cols INTEGER NOT NULL,
		boundaries_h TEXT NOT NULL,
		boundaries_v TEXT NOT NULL,
		artifact_paths TEXT NOT NULL,
		complete INTEGER NOT NULL,
		source_path TEXT NOT NULL DEFAULT '',
		output_dir TEXT NOT NULL DEFAULT '',
		natural_w INTEGER NOT NULL,
		natural_h INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (hash, kind)
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFingerprint(ctx context.Context, hash string) (*models.ImageFingerprint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, kind, first_seen, last_seen, upload_count FROM fingerprints WHERE hash = ?`, hash)
	return scanFingerprint(row)
}

func (s *SQLiteStore) TouchFingerprint(ctx context.Context, hash string, kind models.Kind, now time.Time) (*models.ImageFingerprint, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprints (hash, kind, first_seen, last_seen, upload_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (hash) DO UPDATE SET
			last_seen = excluded.last_seen,
			upload_count = fingerprints.upload_count + 1`,
		hash, string(kind), now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to touch fingerprint: %w", err)
	}
	return s.GetFingerprint(ctx, hash)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, key models.RecordKey) (*models.ProcessingRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE hash = ? AND kind = ?`, key.Hash, string(key.Kind))
	return scanRecord(row)
}

func (s *SQLiteStore) PutRecord(ctx context.Context, rec *models.ProcessingRecord) error {
	h, err := json.Marshal(rec.BoundariesH)
	if err != nil {
		return err
	}
	v, err := json.Marshal(rec.BoundariesV)
	if err != nil {
		return err
	}
	paths, err := json.Marshal(rec.ArtifactPaths)
	if err != nil {
		return err
	}

	next := rec.Version + 1
	if rec.Version == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO records (hash, kind, version, grid_rows, grid_cols, boundaries_h, boundaries_v,
				artifact_paths, complete, source_path, output_dir, natural_w, natural_h, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.FingerprintHash, string(rec.Kind), next, rec.GridRows, rec.GridCols, string(h), string(v),
			string(paths), rec.Complete, rec.SourcePath, rec.OutputDir, rec.NaturalW, rec.NaturalH,
			rec.CreatedAt.UnixNano())
		if err != nil {
			var se sqlite3.Error
			if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
				return ErrConflict
			}
			return fmt.Errorf("failed to insert record: %w", err)
		}
		rec.Version = next
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET version = ?, grid_rows = ?, grid_cols = ?, boundaries_h = ?, boundaries_v = ?,
			artifact_paths = ?, complete = ?, source_path = ?, output_dir = ?, natural_w = ?, natural_h = ?,
			created_at = ?
		WHERE hash = ? AND kind = ? AND version = ?`,
		next, rec.GridRows, rec.GridCols, string(h), string(v), string(paths), rec.Complete,
		rec.SourcePath, rec.OutputDir, rec.NaturalW, rec.NaturalH, rec.CreatedAt.UnixNano(),
		rec.FingerprintHash, string(rec.Kind), rec.Version)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	rec.Version = next
	return nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]*models.ProcessingRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY created_at, hash, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*models.ProcessingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectRecord = `SELECT hash, kind, version, grid_rows, grid_cols, boundaries_h, boundaries_v,
	artifact_paths, complete, source_path, output_dir, natural_w, natural_h, created_at FROM records`

type scanner interface {
	Scan(dest ...any) error
}

func scanFingerprint(row scanner) (*models.ImageFingerprint, error) {
	var (
		fp              models.ImageFingerprint
		kind            string
		first, lastSeen int64
	)
	err := row.Scan(&fp.Hash, &kind, &first, &lastSeen, &fp.UploadCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprint: %w", err)
	}
	fp.Kind = models.Kind(kind)
	fp.FirstSeen = time.Unix(0, first).UTC()
	fp.LastSeen = time.Unix(0, lastSeen).UTC()
	return &fp, nil
}

func scanRecord(row scanner) (*models.ProcessingRecord, error) {
	var (
		rec       models.ProcessingRecord
		kind      string
		h, v, p   string
		createdAt int64
	)
	err := row.Scan(&rec.FingerprintHash, &kind, &rec.Version, &rec.GridRows, &rec.GridCols,
		&h, &v, &p, &rec.Complete, &rec.SourcePath, &rec.OutputDir, &rec.NaturalW, &rec.NaturalH, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	rec.Kind = models.Kind(kind)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(h), &rec.BoundariesH); err != nil {
		return nil, fmt.Errorf("corrupt boundaries_h for %s: %w", rec.Key(), err)
	}
	if err := json.Unmarshal([]byte(v), &rec.BoundariesV); err != nil {
		return nil, fmt.Errorf("corrupt boundaries_v for %s: %w", rec.Key(), err)
	}
	if err := json.Unmarshal([]byte(p), &rec.ArtifactPaths); err != nil {
		return nil, fmt.Errorf("corrupt artifact_paths for %s: %w", rec.Key(), err)
	}
	return &rec, nil
}

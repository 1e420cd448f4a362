package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

const downloadRequestsSchema = `
CREATE TABLE IF NOT EXISTS download_requests (
	id TEXT PRIMARY KEY,
	repo TEXT NOT NULL,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	total_bytes INTEGER,
	downloaded_bytes INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_download_requests_status_created
	ON download_requests (status, created_at);`

// DownloadStore persists DownloadRequest rows and is polled by the
// download queue worker in created_at order.
type DownloadStore struct {
	db *DB
}

// NewDownloadStore wraps db as a download-request repository.
func NewDownloadStore(db *DB) *DownloadStore {
	return &DownloadStore{db: db}
}

func (s *DownloadStore) Create(ctx context.Context, d objs.DownloadRequest) error {
	_, err := s.db.Conn.ExecContext(ctx, `
		INSERT INTO download_requests
			(id, repo, filename, status, error, total_bytes, downloaded_bytes, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Repo.String(), d.Filename, string(d.Status), d.Error, d.TotalBytes,
		d.DownloadedBytes, d.StartedAt, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing download request %s: %w", d.ID, err)
	}
	return nil
}

// FindNonTerminal looks for an existing pending/in-progress row for the
// same (repo, filename) pair, used by the queue to dedup duplicate pulls.
func (s *DownloadStore) FindNonTerminal(ctx context.Context, repo objs.Repo, filename string) (objs.DownloadRequest, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx, `
		SELECT id, repo, filename, status, error, total_bytes, downloaded_bytes, started_at, created_at, updated_at
		FROM download_requests
		WHERE repo = ? AND filename = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		repo.String(), filename, string(objs.DownloadPending), string(objs.DownloadInProgress))
	d, err := scanDownloadRequest(row)
	if err == sql.ErrNoRows {
		return objs.DownloadRequest{}, false, nil
	}
	if err != nil {
		return objs.DownloadRequest{}, false, fmt.Errorf("finding non-terminal download: %w", err)
	}
	return d, true, nil
}

// ListPending returns pending rows in created_at order for the worker
// to claim.
func (s *DownloadStore) ListPending(ctx context.Context, limit int) ([]objs.DownloadRequest, error) {
	rows, err := s.db.Conn.QueryContext(ctx, `
		SELECT id, repo, filename, status, error, total_bytes, downloaded_bytes, started_at, created_at, updated_at
		FROM download_requests WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(objs.DownloadPending), limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending downloads: %w", err)
	}
	defer rows.Close()

	var out []objs.DownloadRequest
	for rows.Next() {
		d, err := scanDownloadRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DownloadStore) Get(ctx context.Context, id string) (objs.DownloadRequest, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx, `
		SELECT id, repo, filename, status, error, total_bytes, downloaded_bytes, started_at, created_at, updated_at
		FROM download_requests WHERE id = ?`, id)
	d, err := scanDownloadRequest(row)
	if err == sql.ErrNoRows {
		return objs.DownloadRequest{}, false, nil
	}
	if err != nil {
		return objs.DownloadRequest{}, false, fmt.Errorf("getting download %s: %w", id, err)
	}
	return d, true, nil
}

// Update persists a mutated DownloadRequest — callers run d.Transition
// first and pass the result here, keeping the monotonic state machine
// enforcement in objs rather than duplicated in SQL.
func (s *DownloadStore) Update(ctx context.Context, d objs.DownloadRequest) error {
	_, err := s.db.Conn.ExecContext(ctx, `
		UPDATE download_requests SET
			status = ?, error = ?, total_bytes = ?, downloaded_bytes = ?,
			started_at = ?, updated_at = ?
		WHERE id = ?`,
		string(d.Status), d.Error, d.TotalBytes, d.DownloadedBytes, d.StartedAt, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("updating download request %s: %w", d.ID, err)
	}
	return nil
}

// SyncProgress is the throttled write path the progress sink calls on
// its own cadence, distinct from Update's full-row semantics.
func (s *DownloadStore) SyncProgress(ctx context.Context, id string, downloaded int64, now time.Time) error {
	_, err := s.db.Conn.ExecContext(ctx, `
		UPDATE download_requests SET downloaded_bytes = ?, updated_at = ? WHERE id = ?`,
		downloaded, now, id)
	return err
}

func scanDownloadRequest(row rowScanner) (objs.DownloadRequest, error) {
	var (
		id, repoStr, filename, status string
		errMsg                        sql.NullString
		totalBytes                    sql.NullInt64
		downloadedBytes               int64
		startedAt                     sql.NullTime
		createdAt, updatedAt          time.Time
	)
	if err := row.Scan(&id, &repoStr, &filename, &status, &errMsg, &totalBytes, &downloadedBytes, &startedAt, &createdAt, &updatedAt); err != nil {
		return objs.DownloadRequest{}, err
	}
	repo, err := objs.ParseRepo(repoStr)
	if err != nil {
		return objs.DownloadRequest{}, fmt.Errorf("parsing stored repo %q: %w", repoStr, err)
	}
	d := objs.DownloadRequest{
		ID: id, Repo: repo, Filename: filename, Status: objs.DownloadStatus(status),
		DownloadedBytes: downloadedBytes, CreatedAt: createdAt, UpdatedAt: updatedAt,
	}
	if errMsg.Valid {
		d.Error = &errMsg.String
	}
	if totalBytes.Valid {
		d.TotalBytes = &totalBytes.Int64
	}
	if startedAt.Valid {
		d.StartedAt = &startedAt.Time
	}
	return d, nil
}

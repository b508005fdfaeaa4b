// Package store persists final scan results in SQLite. Only completed
// results are written; the scan pipeline never reads from it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/use-agent/tagscope/models"
)

// ErrNotFound is returned when a scan id does not exist.
var ErrNotFound = errors.New("scan not found")

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 20

// Store is a SQLite-backed scan history. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		performance INTEGER,
		privacy INTEGER,
		tracking INTEGER,
		compliance INTEGER,
		overall INTEGER,
		result_json TEXT NOT NULL,
		scanned_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url);
	CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Save stores a final scan result and returns its id.
func (s *Store) Save(ctx context.Context, result *models.ScanResult) (int64, error) {
	if result == nil {
		return 0, errors.New("store: nil result")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize result: %w", err)
	}

	var perf, priv, track, comp, overall sql.NullInt64
	if sc := result.Scores; sc != nil {
		perf = sql.NullInt64{Int64: int64(sc.Performance), Valid: true}
		priv = sql.NullInt64{Int64: int64(sc.Privacy), Valid: true}
		track = sql.NullInt64{Int64: int64(sc.Tracking), Valid: true}
		comp = sql.NullInt64{Int64: int64(sc.Compliance), Valid: true}
		overall = sql.NullInt64{Int64: int64(sc.Overall), Valid: true}
	}

	scannedAt := result.StartedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO scans (url, success, error, performance, privacy, tracking, compliance, overall, result_json, scanned_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.URL, result.Success, result.Error, perf, priv, track, comp, overall, string(data), scannedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest scans first. An empty url lists every target.
func (s *Store) Recent(ctx context.Context, url string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(`SELECT id, url, success, error, performance, privacy, tracking, compliance, overall, scanned_at FROM scans`)
	if url != "" {
		q.WriteString(` WHERE url = ?`)
		args = append(args, url)
	}
	q.WriteString(` ORDER BY scanned_at DESC, id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var errText sql.NullString
		var perf, priv, track, comp, overall sql.NullInt64
		if err := rows.Scan(&e.ID, &e.URL, &e.Success, &errText, &perf, &priv, &track, &comp, &overall, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Error = errText.String
		if overall.Valid {
			e.Scores = &models.Scores{
				Performance: int(perf.Int64),
				Privacy:     int(priv.Int64),
				Tracking:    int(track.Int64),
				Compliance:  int(comp.Int64),
				Overall:     int(overall.Int64),
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full stored result for id.
func (s *Store) Get(ctx context.Context, id int64) (*models.ScanResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM scans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan: %w", err)
	}
	var result models.ScanResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}
	return &result, nil
}

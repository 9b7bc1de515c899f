package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-server/internal/logging"
	"media-server/internal/metrics"
)

// ErrNotFound is returned by Get for paths absent from the index.
var ErrNotFound = errors.New("path not indexed")

// Default timeout for single index store operations.
const defaultTimeout = 5 * time.Second

// Store manages the SQLite-backed file record table.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if necessary) the index database at dbPath. The parent
// directory must already exist and be writable; use startup.LoadConfig to
// validate directories before calling this.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Index database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent upserts from tripping
	// "database is locked" under enrichment load.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to index database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logging.Info("Index store initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		dir TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT,
		date_created INTEGER,
		date_modified INTEGER,
		metadata TEXT NOT NULL DEFAULT '{}',
		last_indexed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_files_dir ON files(dir);
	CREATE INDEX IF NOT EXISTS idx_files_mime ON files(mime_type);
	CREATE INDEX IF NOT EXISTS idx_files_dir_mime ON files(dir, mime_type);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or merges a partial file record.
//
// Size and the two timestamps are always overwritten with the latest observed
// values. MimeType and LastIndexedAt are overwritten only when the partial
// supplies them (zero value preserves the stored one). Metadata keys are
// unioned into the existing map via json_patch; the whole merge runs as one
// statement so concurrent upserts to the same path cannot corrupt the record
// or the total count.
func (s *Store) Upsert(ctx context.Context, rec *FileRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert", start, err) }()

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	var metaJSON []byte
	metaJSON, err = json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", rec.Path, err)
	}

	query := `
	INSERT INTO files (path, dir, name, size, mime_type, date_created, date_modified, metadata, last_indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		dir = excluded.dir,
		name = excluded.name,
		size = excluded.size,
		mime_type = COALESCE(excluded.mime_type, files.mime_type),
		date_created = COALESCE(excluded.date_created, files.date_created),
		date_modified = COALESCE(excluded.date_modified, files.date_modified),
		metadata = json_patch(files.metadata, excluded.metadata),
		last_indexed_at = COALESCE(excluded.last_indexed_at, files.last_indexed_at)
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, query,
		rec.Path,
		rec.Directory,
		rec.Name,
		rec.Size,
		nullString(rec.MimeType),
		nullUnix(rec.DateCreated),
		nullUnix(rec.DateModified),
		string(metaJSON),
		nullUnix(rec.LastIndexedAt),
	)
	return err
}

// MergeMetadata unions extracted metadata keys into an existing record and
// stamps last_indexed_at, leaving size and timestamps untouched. Returns
// ErrNotFound if the record was removed between extraction and merge.
func (s *Store) MergeMetadata(ctx context.Context, path string, meta map[string]any, indexedAt time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("merge_metadata", start, err) }()

	var metaJSON []byte
	metaJSON, err = json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = s.db.ExecContext(ctx,
		"UPDATE files SET metadata = json_patch(metadata, ?), last_indexed_at = ? WHERE path = ?",
		string(metaJSON), indexedAt.Unix(), path,
	)
	if err != nil {
		return err
	}
	if rows, rowsErr := result.RowsAffected(); rowsErr == nil && rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// ResetEnrichment drops extracted metadata and the enrichment stamp for path.
// Called when a file's contents change: the old type-specific fields may no
// longer describe the bytes on disk, and a NULL stamp keeps the path visible
// to UnenrichedPaths until re-extraction succeeds.
func (s *Store) ResetEnrichment(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_enrichment", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"UPDATE files SET metadata = '{}', last_indexed_at = NULL WHERE path = ?", path)
	return err
}

// Remove deletes the record for path. Removing an absent path is not an error.
func (s *Store) Remove(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	return err
}

// RemoveDir deletes every record under dir, including nested subdirectories.
// Used when the watcher observes a whole directory vanish; the removed entries
// never deliver per-file events.
func (s *Store) RemoveDir(ctx context.Context, dir string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_dir", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM files WHERE dir = ? OR dir LIKE ? || '/%'", dir, dir)
	return err
}

// Get returns the record for path, or ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (*FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT path, dir, name, size, mime_type, date_created, date_modified, metadata, last_indexed_at
	FROM files WHERE path = ?
	`

	rec, scanErr := scanRecord(s.db.QueryRowContext(ctx, query, path))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		err = scanErr
		return nil, err
	}
	return rec, nil
}

// Count returns the number of indexed records.
func (s *Store) Count(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n)
	if err == nil {
		metrics.IndexRecords.Set(float64(n))
	}
	return n, err
}

// Paths returns every indexed path. Used by the watcher's periodic sweep to
// find records whose backing file has gone away without a delete event.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("paths", start, err) }()

	rows, queryErr := s.db.QueryContext(ctx, "SELECT path FROM files ORDER BY path")
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// UnenrichedPaths returns paths whose metadata extraction has never succeeded.
// The watcher's sweep retries these.
func (s *Store) UnenrichedPaths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("unenriched_paths", start, err) }()

	rows, queryErr := s.db.QueryContext(ctx,
		"SELECT path FROM files WHERE last_indexed_at IS NULL ORDER BY path")
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return paths, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var mimeType sql.NullString
	var created, modified, indexed sql.NullInt64
	var metaJSON string

	if err := row.Scan(
		&rec.Path, &rec.Directory, &rec.Name, &rec.Size,
		&mimeType, &created, &modified, &metaJSON, &indexed,
	); err != nil {
		return nil, err
	}

	if mimeType.Valid {
		rec.MimeType = mimeType.String
	}
	if created.Valid {
		rec.DateCreated = time.Unix(created.Int64, 0)
	}
	if modified.Valid {
		rec.DateModified = time.Unix(modified.Int64, 0)
	}
	if indexed.Valid {
		rec.LastIndexedAt = time.Unix(indexed.Int64, 0)
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for %s: %w", rec.Path, err)
		}
	}
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// recordQuery records index store query metrics.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IndexQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.IndexQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

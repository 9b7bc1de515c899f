package index

import (
	"context"
	"fmt"
	"time"

	"media-server/internal/logging"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// List returns one page of projected records matching opts, plus the total
// match count. A page past the end of the result set returns empty items with
// the correct total; it is not an error.
func (s *Store) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list", start, err) }()

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}

	where := "1=1"
	var args []any

	if opts.Directory != "" {
		where += " AND (dir = ? OR dir LIKE ? || '/%')"
		args = append(args, opts.Directory, opts.Directory)
	}
	if opts.MimeClass != "" {
		where += " AND mime_type LIKE ? || '/%'"
		args = append(args, opts.MimeClass)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	offset := (opts.Page - 1) * opts.PageSize

	query := fmt.Sprintf(`
	SELECT path, dir, name, size, mime_type, date_created, date_modified, metadata, last_indexed_at
	FROM files WHERE %s
	ORDER BY path
	LIMIT ? OFFSET ?`, where)
	args = append(args, opts.PageSize, offset)

	rows, queryErr := s.db.QueryContext(ctx, query, args...)
	if queryErr != nil {
		err = queryErr
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	items := make([]ListItem, 0, opts.PageSize)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		items = append(items, ListItem{
			Path:     rec.Path,
			Metadata: opts.Projection.Apply(rec),
		})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	logging.Debug("List dir=%q class=%q page=%d -> %d/%d items in %v",
		opts.Directory, opts.MimeClass, opts.Page, len(items), total, time.Since(start))

	return &ListResult{Items: items, Total: total}, nil
}

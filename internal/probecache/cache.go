package probecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"clipper/internal/logging"
	"clipper/internal/media/ffprobe"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Cache memoizes ffprobe output keyed by path, size and modification time.
// A file that changed on disk misses and is re-probed.
type Cache struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open initializes or connects to the cache database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure probe cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	cache := &Cache{db: db, path: dbPath, logger: logging.NewComponentLogger(logger, "probecache")}
	if err := cache.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file location.
func (c *Cache) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Lookup returns the cached result for mediaPath when the file is unchanged.
func (c *Cache) Lookup(ctx context.Context, mediaPath string) (ffprobe.Result, bool, error) {
	info, err := os.Stat(mediaPath)
	if err != nil {
		return ffprobe.Result{}, false, err
	}

	var (
		size    int64
		modTime int64
		payload []byte
	)
	err = retryOnBusy(ctx, func() error {
		return c.db.QueryRowContext(ctx,
			"SELECT size_bytes, mod_time_ns, probe_json FROM probes WHERE path = ?", mediaPath,
		).Scan(&size, &modTime, &payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ffprobe.Result{}, false, nil
	}
	if err != nil {
		return ffprobe.Result{}, false, fmt.Errorf("query probe cache: %w", err)
	}
	if size != info.Size() || modTime != info.ModTime().UnixNano() {
		return ffprobe.Result{}, false, nil
	}
	result, err := ffprobe.Parse(payload)
	if err != nil {
		c.logger.Warn("discarding unreadable probe cache entry",
			logging.String("path", mediaPath),
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_cache_corrupt"),
			logging.String(logging.FieldErrorHint, "entry will be refreshed on next probe"),
			logging.String(logging.FieldImpact, "file is probed again"),
		)
		return ffprobe.Result{}, false, nil
	}
	return result, true, nil
}

// Store records result for mediaPath using the file's current size and mtime.
func (c *Cache) Store(ctx context.Context, mediaPath string, result ffprobe.Result) error {
	info, err := os.Stat(mediaPath)
	if err != nil {
		return err
	}
	payload := result.RawJSON()
	if len(payload) == 0 {
		return errors.New("probe cache: result has no raw payload")
	}
	return retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx, `
INSERT INTO probes (path, size_bytes, mod_time_ns, probe_json, probed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    size_bytes = excluded.size_bytes,
    mod_time_ns = excluded.mod_time_ns,
    probe_json = excluded.probe_json,
    probed_at = excluded.probed_at`,
			mediaPath, info.Size(), info.ModTime().UnixNano(), payload, time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

// Prune removes entries whose files no longer exist and returns how many were dropped.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT path FROM probes")
	if err != nil {
		return 0, fmt.Errorf("list probe cache: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan probe cache: %w", err)
		}
		if _, statErr := os.Stat(p); statErr != nil {
			stale = append(stale, p)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	for _, p := range stale {
		if err := retryOnBusy(ctx, func() error {
			_, err := c.db.ExecContext(ctx, "DELETE FROM probes WHERE path = ?", p)
			return err
		}); err != nil {
			return 0, fmt.Errorf("prune %s: %w", p, err)
		}
	}
	return len(stale), nil
}

// Wrap returns a ProbeFunc that consults the cache before calling probe and
// stores fresh results. Cache errors are logged and never fail the probe.
func (c *Cache) Wrap(probe ffprobe.ProbeFunc) ffprobe.ProbeFunc {
	if c == nil {
		return probe
	}
	return func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		if result, ok, err := c.Lookup(ctx, path); err == nil && ok {
			c.logger.Debug("probe cache hit", logging.String("path", path))
			return result, nil
		}
		result, err := probe(ctx, binary, path)
		if err != nil {
			return result, err
		}
		if storeErr := c.Store(ctx, path, result); storeErr != nil {
			c.logger.Warn("probe cache store failed",
				logging.String("path", path),
				logging.Error(storeErr),
				logging.String(logging.FieldEventType, "probe_cache_store_failed"),
				logging.String(logging.FieldErrorHint, "check probe_cache.path permissions"),
				logging.String(logging.FieldImpact, "file will be probed again next time"),
			)
		}
		return result, nil
	}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tomyedwab/sqlbridge/bridge/types"
)

// uriPath escapes the characters SQLite's URI parser would otherwise treat
// as query, fragment or escape delimiters. SQLite decodes them again.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dsn builds the go-sqlite3 connection string for a store.
// See: https://github.com/mattn/go-sqlite3#connection-string
func (e *Executor) dsn(path string, opts types.OpenOptions) string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=%s",
		uriPath.Replace(path), e.cfg.BusyTimeout*msPerSecond, foreignKeysSetting(opts))
}

func foreignKeysSetting(opts types.OpenOptions) string {
	if opts.ForeignKeysDisabled() {
		return "off"
	}
	return "on"
}

// connect opens and verifies the store at path, registering it under path.
// An already open store is reused and the requested foreign key setting is
// applied to it.
func (e *Executor) connect(ctx context.Context, path string, opts types.OpenOptions) error {
	e.mu.Lock()
	existing, ok := e.stores[path]
	e.mu.Unlock()
	if ok {
		return applyForeignKeys(ctx, existing, opts)
	}

	db, err := sqlx.Open("sqlite3", e.dsn(path, opts))
	if err != nil {
		return fmt.Errorf("connection failed to %s: %w", path, err)
	}
	// One connection per store so per-connection state (pragmas) sticks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return fmt.Errorf("connection failed to %s: %w", path, err)
	}

	e.mu.Lock()
	existing, ok = e.stores[path]
	if !ok {
		e.stores[path] = db
	}
	e.mu.Unlock()
	if ok {
		// Lost a race with another open of the same path.
		db.Close() //nolint:errcheck
		return applyForeignKeys(ctx, existing, opts)
	}
	return nil
}

func applyForeignKeys(ctx context.Context, db *sqlx.DB, opts types.OpenOptions) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = "+foreignKeysSetting(opts)); err != nil {
		return fmt.Errorf("set pragma foreign_keys failed: %w", err)
	}
	return nil
}

func (e *Executor) load(ctx context.Context, req types.LoadRequest) (string, error) {
	if err := os.MkdirAll(e.cfg.StoreDir, dirPermissions); err != nil {
		return "", fmt.Errorf("creating store directory: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(e.cfg.StoreDir, e.cfg.StoreName))
	if err != nil {
		return "", fmt.Errorf("resolving store path: %w", err)
	}
	if err := e.connect(ctx, path, req.Options); err != nil {
		return "", err
	}
	return path, nil
}

// open replies false, rather than failing, when the store file cannot be
// opened. Malformed requests still fail.
func (e *Executor) open(ctx context.Context, req types.OpenRequest) (bool, error) {
	if req.DBPath == "" {
		return false, fmt.Errorf("dbPath is required")
	}
	if err := e.connect(ctx, req.DBPath, req.Options); err != nil {
		e.log.Info().Err(err).Str("db_path", req.DBPath).Msg("store could not be opened")
		return false, nil
	}
	return true, nil
}

func (e *Executor) setPragma(ctx context.Context, req types.SetPragmaRequest) (bool, error) {
	db, err := e.store(req.DBPath)
	if err != nil {
		return false, err
	}
	stmt, err := pragmaStatement(req.Key, req.Value)
	if err != nil {
		return false, err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("set pragma %s failed: %w", req.Key, err)
	}
	return true, nil
}

func (e *Executor) selectRows(ctx context.Context, req types.QueryRequest) ([]map[string]any, error) {
	db, err := e.store(req.DBPath)
	if err != nil {
		return nil, err
	}
	args, err := bindValues(req.Params)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryxContext(ctx, req.Query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	results := []map[string]any{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, rowValues(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (e *Executor) execute(ctx context.Context, req types.QueryRequest) (bool, error) {
	db, err := e.store(req.DBPath)
	if err != nil {
		return false, err
	}

	if isBulk(req.Params) {
		queries := make([]types.Query, len(req.Params))
		for i, p := range req.Params {
			rowParams, ok := p.([]any)
			if !ok {
				return false, fmt.Errorf("parameter row %d is not an array", i)
			}
			queries[i] = types.Query{SQL: req.Query, Params: rowParams}
		}
		return e.inTransaction(ctx, db, queries)
	}

	args, err := bindValues(req.Params)
	if err != nil {
		return false, err
	}
	if _, err := db.ExecContext(ctx, req.Query, args...); err != nil {
		return false, fmt.Errorf("exec failed: %w", err)
	}
	return true, nil
}

func (e *Executor) batch(ctx context.Context, req types.BatchRequest) (bool, error) {
	db, err := e.store(req.DBPath)
	if err != nil {
		return false, err
	}
	return e.inTransaction(ctx, db, req.Queries)
}

// inTransaction runs queries in order and commits only if all succeed.
func (e *Executor) inTransaction(ctx context.Context, db *sqlx.DB, queries []types.Query) (bool, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction failed: %w", err)
	}
	for i, q := range queries {
		args, err := bindValues(q.Params)
		if err == nil {
			_, err = tx.ExecContext(ctx, q.SQL, args...)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				e.log.Error().Err(rerr).Msg("rollback failed")
			}
			return false, fmt.Errorf("statement %d (%s) failed: %w", i, q.SQL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit failed: %w", err)
	}
	return true, nil
}

// closeStore closes and forgets a store. Closing an unknown path succeeds.
func (e *Executor) closeStore(path string) (bool, error) {
	e.mu.Lock()
	db, ok := e.stores[path]
	delete(e.stores, path)
	e.mu.Unlock()

	if !ok {
		return true, nil
	}
	if err := db.Close(); err != nil {
		return false, fmt.Errorf("close failed: %w", err)
	}
	return true, nil
}

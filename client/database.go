package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tomyedwab/sqlbridge/bridge/types"
)

// Row is an untyped record as returned by the executor.
type Row = map[string]any

// Database is a logical connection to one store, identified by its path.
// It is immutable once returned by Load or Open and safe for concurrent use.
type Database struct {
	path    string
	invoker Invoker
}

// Load asks the executor to choose or create a managed store and returns a
// session bound to the path it resolved.
func Load(ctx context.Context, inv Invoker, opts *types.OpenOptions) (*Database, error) {
	var path string
	if err := call(ctx, inv, types.CommandLoad, types.LoadRequest{Options: options(opts)}, &path); err != nil {
		return nil, err
	}
	return &Database{path: path, invoker: inv}, nil
}

// Open connects to the store at path. A false reply from the executor is
// reported as *OpenError; a failed invocation is returned as is.
func Open(ctx context.Context, inv Invoker, path string, opts *types.OpenOptions) (*Database, error) {
	db := &Database{path: path, invoker: inv}
	if err := db.connect(ctx, opts); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) connect(ctx context.Context, opts *types.OpenOptions) error {
	var ok bool
	req := types.OpenRequest{DBPath: db.path, Options: options(opts)}
	if err := call(ctx, db.invoker, types.CommandOpen, req, &ok); err != nil {
		return err
	}
	if !ok {
		return &OpenError{Path: db.path}
	}
	return nil
}

// Path returns the store path this session is bound to.
func (db *Database) Path() string {
	return db.path
}

// SetPragma sets a pragma on the store. The executor's boolean is returned
// verbatim; key and value are not checked locally.
func (db *Database) SetPragma(ctx context.Context, key string, value any) (bool, error) {
	var ok bool
	req := types.SetPragmaRequest{DBPath: db.path, Key: key, Value: value}
	if err := call(ctx, db.invoker, types.CommandSetPragma, req, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Select runs a row-returning query and returns untyped rows. An empty result
// set is an empty slice, not an error.
func (db *Database) Select(ctx context.Context, query string, params ...any) ([]Row, error) {
	return Select[Row](ctx, db, query, params...)
}

// SelectFirst is the untyped form of the package-level SelectFirst.
func (db *Database) SelectFirst(ctx context.Context, query string, params ...any) (Row, error) {
	return SelectFirst[Row](ctx, db, query, params...)
}

// Execute runs a statement that returns no rows. The executor's boolean is
// returned verbatim.
func (db *Database) Execute(ctx context.Context, query string, params ...any) (bool, error) {
	return db.execute(ctx, query, bindParams(params))
}

// ExecuteMany runs query once per parameter row inside a single executor
// transaction.
func (db *Database) ExecuteMany(ctx context.Context, query string, rows [][]any) (bool, error) {
	params := make([]any, len(rows))
	for i, row := range rows {
		params[i] = bindParams(row)
	}
	return db.execute(ctx, query, params)
}

func (db *Database) execute(ctx context.Context, query string, params []any) (bool, error) {
	var ok bool
	req := types.QueryRequest{DBPath: db.path, Query: query, Params: params}
	if err := call(ctx, db.invoker, types.CommandExecute, req, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Batch sends every query, in order, as one command. The executor runs them
// in a single transaction and rolls all of them back if any fails.
func (db *Database) Batch(ctx context.Context, queries []types.Query) (bool, error) {
	marshalled := make([]types.Query, len(queries))
	for i, q := range queries {
		marshalled[i] = types.Query{SQL: q.SQL, Params: bindParams(q.Params)}
	}
	var ok bool
	req := types.BatchRequest{DBPath: db.path, Queries: marshalled}
	if err := call(ctx, db.invoker, types.CommandBatch, req, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Close asks the executor to release the store. The session must not be used
// afterwards.
func (db *Database) Close(ctx context.Context) (bool, error) {
	var ok bool
	if err := call(ctx, db.invoker, types.CommandClose, types.CloseRequest{DBPath: db.path}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Select runs a row-returning query and reinterprets each row as T. T is a
// label, not a schema: rows are decoded from the executor's JSON with no
// field-level validation.
func Select[T any](ctx context.Context, db *Database, query string, params ...any) ([]T, error) {
	var rows []T
	req := types.QueryRequest{DBPath: db.path, Query: query, Params: bindParams(params)}
	if err := call(ctx, db.invoker, types.CommandSelect, req, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// SelectFirst returns the first row of the query, or ErrNoResults if the
// executor returned none. Executor failures are not mapped to ErrNoResults.
func SelectFirst[T any](ctx context.Context, db *Database, query string, params ...any) (T, error) {
	var zero T
	rows, err := Select[T](ctx, db, query, params...)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNoResults
	}
	return rows[0], nil
}

// call invokes command and decodes the reply into out. Invocation errors are
// returned unchanged.
func call(ctx context.Context, inv Invoker, command string, args, out any) error {
	reply, err := inv.Invoke(ctx, command, args)
	if err != nil {
		return err
	}
	if len(reply) == 0 {
		return fmt.Errorf("%s: empty reply", command)
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("%s: decode reply: %w", command, err)
	}
	return nil
}

func bindParams(params []any) []any {
	if params == nil {
		return []any{}
	}
	return params
}

func options(opts *types.OpenOptions) types.OpenOptions {
	if opts == nil {
		return types.OpenOptions{}
	}
	return *opts
}

package executor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/sqlbridge/bridge/types"
	"github.com/tomyedwab/sqlbridge/executor/journal"
	"github.com/tomyedwab/sqlbridge/internal/logger"
)

func newTestExecutor(t *testing.T, opts ...Option) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	e := New(Config{StoreDir: dir}, logger.Nop(), opts...)
	t.Cleanup(func() { e.Close() })
	return e, dir
}

func request(t *testing.T, command string, args any) []byte {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	require.NoError(t, err)
	payload, err := json.Marshal(types.Envelope{Command: command, Args: argsJSON})
	require.NoError(t, err)
	return payload
}

func reply(t *testing.T, payload []byte) types.Reply {
	t.Helper()
	var r types.Reply
	require.NoError(t, json.Unmarshal(payload, &r))
	return r
}

func TestHandleRequestMalformedEnvelope(t *testing.T) {
	e, _ := newTestExecutor(t)

	payload, err := e.HandleRequest(context.Background(), []byte("not json"))
	require.NoError(t, err)
	r := reply(t, payload)
	assert.Contains(t, r.Error, "failed to unmarshal request")
	assert.Empty(t, r.Result)
}

func TestHandleRequestOpenAndSelect(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestExecutor(t)
	dbPath := filepath.Join(dir, "a.db")

	payload, err := e.HandleRequest(ctx, request(t, types.CommandOpen, types.OpenRequest{DBPath: dbPath}))
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(reply(t, payload).Result))
	assert.Equal(t, []string{dbPath}, e.Paths())

	payload, err = e.HandleRequest(ctx, request(t, types.CommandSelect, types.QueryRequest{
		DBPath: dbPath,
		Query:  "SELECT ?1 AS a, ?2 AS b",
		Params: []any{"first", 2},
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":"first","b":2}]`, string(reply(t, payload).Result))
}

func foreignKeys(t *testing.T, e *Executor, dbPath string) any {
	t.Helper()
	args, _ := json.Marshal(types.QueryRequest{DBPath: dbPath, Query: "PRAGMA foreign_keys", Params: []any{}})
	rows, err := e.Handle(context.Background(), types.CommandSelect, args)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows.([]map[string]any)[0]["foreign_keys"]
}

func TestOpenTwiceReusesStore(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestExecutor(t)
	dbPath := filepath.Join(dir, "a.db")
	disable := true

	steps := []struct {
		opts types.OpenOptions
		want int64
	}{
		{types.OpenOptions{}, 1},
		{types.OpenOptions{DisableForeignKeys: &disable}, 0},
		{types.OpenOptions{}, 1},
	}
	for i, step := range steps {
		args, _ := json.Marshal(types.OpenRequest{DBPath: dbPath, Options: step.opts})
		ok, err := e.Handle(ctx, types.CommandOpen, args)
		require.NoError(t, err)
		assert.Equal(t, true, ok)
		assert.EqualValues(t, step.want, foreignKeys(t, e, dbPath), "open #%d", i+1)
	}
	assert.Len(t, e.Paths(), 1)
}

func TestLoadTwiceAppliesLatestOptions(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestExecutor(t)

	first, err := e.Handle(ctx, types.CommandLoad, json.RawMessage(`{"options":{}}`))
	require.NoError(t, err)
	second, err := e.Handle(ctx, types.CommandLoad, json.RawMessage(`{"options":{"disable_foreign_keys":true}}`))
	require.NoError(t, err)
	require.Equal(t, first, second)

	assert.EqualValues(t, 0, foreignKeys(t, e, second.(string)))
}

func TestStorePathsAreNotURIs(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestExecutor(t)
	names := []string{"we?ird.db", "we?other.db", "hash#100%.db"}

	for _, name := range names {
		dbPath := filepath.Join(dir, name)
		args, _ := json.Marshal(types.OpenRequest{DBPath: dbPath})
		ok, err := e.Handle(ctx, types.CommandOpen, args)
		require.NoError(t, err)
		require.Equal(t, true, ok)

		args, _ = json.Marshal(types.QueryRequest{DBPath: dbPath, Query: "CREATE TABLE t (name TEXT)", Params: []any{}})
		_, err = e.Handle(ctx, types.CommandExecute, args)
		require.NoError(t, err, name)
		assert.FileExists(t, dbPath)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	assert.ElementsMatch(t, names, files)
}

func TestOpenUnopenableStoreRepliesFalse(t *testing.T) {
	e, _ := newTestExecutor(t)
	args, _ := json.Marshal(types.OpenRequest{DBPath: "/nonexistent/dir/x.db"})

	ok, err := e.Handle(context.Background(), types.CommandOpen, args)
	require.NoError(t, err)
	assert.Equal(t, false, ok)
	assert.Empty(t, e.Paths())
}

func TestOpenRequiresPath(t *testing.T) {
	e, _ := newTestExecutor(t)

	_, err := e.Handle(context.Background(), types.CommandOpen, json.RawMessage(`{"options":{}}`))
	assert.EqualError(t, err, "dbPath is required")

	_, err = e.Handle(context.Background(), types.CommandOpen, nil)
	assert.EqualError(t, err, "missing arguments")
}

func TestCommandsOnUnknownPath(t *testing.T) {
	e, _ := newTestExecutor(t)
	args := json.RawMessage(`{"dbPath":"/tmp/never-opened.db","query":"SELECT 1","params":[]}`)

	for _, command := range []string{types.CommandSelect, types.CommandExecute} {
		_, err := e.Handle(context.Background(), command, args)
		assert.ErrorIs(t, err, ErrNotConnected)
	}

	ok, err := e.Handle(context.Background(), types.CommandClose, json.RawMessage(`{"dbPath":"/tmp/never-opened.db"}`))
	require.NoError(t, err)
	assert.Equal(t, true, ok)
}

func TestUnknownCommand(t *testing.T) {
	e, _ := newTestExecutor(t)
	_, err := e.Handle(context.Background(), "drop_everything", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestHandleRecordsJournal(t *testing.T) {
	ctx := context.Background()
	jdb := sqlx.MustConnect("sqlite3", filepath.Join(t.TempDir(), "journal.db"))
	t.Cleanup(func() { jdb.Close() })
	j, err := journal.New(jdb)
	require.NoError(t, err)

	e, dir := newTestExecutor(t, WithJournal(j))
	dbPath := filepath.Join(dir, "a.db")

	openArgs, _ := json.Marshal(types.OpenRequest{DBPath: dbPath})
	_, err = e.Handle(ctx, types.CommandOpen, openArgs)
	require.NoError(t, err)

	badArgs, _ := json.Marshal(types.QueryRequest{DBPath: dbPath, Query: "SELEC 1"})
	_, err = e.Handle(ctx, types.CommandSelect, badArgs)
	require.Error(t, err)

	entries, err := j.ForPath(dbPath)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.CommandOpen, entries[0].Command)
	assert.Empty(t, entries[0].Error)
	assert.Equal(t, types.CommandSelect, entries[1].Command)
	assert.Contains(t, entries[1].Error, "syntax error")
}

func TestLoadCreatesStoreDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "stores")
	e := New(Config{StoreDir: dir, StoreName: "app.db"}, logger.Nop())
	t.Cleanup(func() { e.Close() })

	path, err := e.Handle(context.Background(), types.CommandLoad, json.RawMessage(`{"options":{}}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.db"), path)
	assert.FileExists(t, filepath.Join(dir, "app.db"))
}

func TestCloseForgetsStores(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestExecutor(t)
	for _, name := range []string{"a.db", "b.db"} {
		args, _ := json.Marshal(types.OpenRequest{DBPath: filepath.Join(dir, name)})
		_, err := e.Handle(ctx, types.CommandOpen, args)
		require.NoError(t, err)
	}
	require.Len(t, e.Paths(), 2)

	require.NoError(t, e.Close())
	assert.Empty(t, e.Paths())
}

package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/tomyedwab/sqlbridge/bridge/types"
	"github.com/tomyedwab/sqlbridge/executor/journal"
)

// ErrNotConnected is returned for commands naming a store that was never
// opened (or was closed).
var ErrNotConnected = errors.New("not connected")

// ErrUnknownCommand is returned for command names outside bridge/types.
var ErrUnknownCommand = errors.New("unknown command")

// Executor handles bridge commands against SQLite stores.
type Executor struct {
	cfg     Config
	log     zerolog.Logger
	journal *journal.Journal

	mu     sync.Mutex
	stores map[string]*sqlx.DB
}

// Option configures an Executor.
type Option func(*Executor)

// WithJournal records every handled command in j.
func WithJournal(j *journal.Journal) Option {
	return func(e *Executor) {
		e.journal = j
	}
}

// New creates an Executor. No store is opened until a load or open command
// arrives.
func New(cfg Config, log zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "executor").Logger(),
		stores: make(map[string]*sqlx.DB),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleRequest processes a marshalled types.Envelope and returns a
// marshalled types.Reply.
func (e *Executor) HandleRequest(ctx context.Context, requestPayload []byte) ([]byte, error) {
	var env types.Envelope
	if err := json.Unmarshal(requestPayload, &env); err != nil {
		return marshalErrorReply(fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	result, err := e.Handle(ctx, env.Command, env.Args)
	if err != nil {
		return marshalErrorReply(err.Error())
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return marshalErrorReply(fmt.Sprintf("failed to marshal %s result: %v", env.Command, err))
	}
	return json.Marshal(types.Reply{Result: resultJSON})
}

func marshalErrorReply(errMsg string) ([]byte, error) {
	payload, err := json.Marshal(types.Reply{Error: errMsg})
	if err != nil {
		return []byte(`{"error":"critical: failed to marshal error reply"}`),
			fmt.Errorf("failed to marshal error reply for '%s': %w", errMsg, err)
	}
	return payload, nil
}

// Handle runs one command. args is the command's JSON request struct.
func (e *Executor) Handle(ctx context.Context, command string, args json.RawMessage) (any, error) {
	start := time.Now()
	result, dbPath, err := e.dispatch(ctx, command, args)
	elapsed := time.Since(start)

	if err != nil {
		e.log.Warn().Err(err).Str("command", command).Str("db_path", dbPath).Dur("duration", elapsed).Msg("command failed")
	} else {
		e.log.Debug().Str("command", command).Str("db_path", dbPath).Dur("duration", elapsed).Msg("command handled")
	}

	if e.journal != nil {
		entry := journal.Entry{Command: command, DBPath: dbPath, Duration: elapsed}
		if err != nil {
			entry.Error = err.Error()
		}
		if jerr := e.journal.Record(entry); jerr != nil {
			e.log.Warn().Err(jerr).Str("command", command).Msg("failed to record command")
		}
	}
	return result, err
}

func (e *Executor) dispatch(ctx context.Context, command string, args json.RawMessage) (any, string, error) {
	switch command {
	case types.CommandLoad:
		var req types.LoadRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		path, err := e.load(ctx, req)
		return path, path, err
	case types.CommandOpen:
		var req types.OpenRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		ok, err := e.open(ctx, req)
		return ok, req.DBPath, err
	case types.CommandSetPragma:
		var req types.SetPragmaRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		ok, err := e.setPragma(ctx, req)
		return ok, req.DBPath, err
	case types.CommandSelect:
		var req types.QueryRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		rows, err := e.selectRows(ctx, req)
		return rows, req.DBPath, err
	case types.CommandExecute:
		var req types.QueryRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		ok, err := e.execute(ctx, req)
		return ok, req.DBPath, err
	case types.CommandBatch:
		var req types.BatchRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		ok, err := e.batch(ctx, req)
		return ok, req.DBPath, err
	case types.CommandClose:
		var req types.CloseRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, "", err
		}
		ok, err := e.closeStore(req.DBPath)
		return ok, req.DBPath, err
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// store returns the open store for path.
func (e *Executor) store(path string) (*sqlx.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	db, ok := e.stores[path]
	if !ok {
		return nil, fmt.Errorf("%w to %s", ErrNotConnected, path)
	}
	return db, nil
}

// Paths lists the stores currently open.
func (e *Executor) Paths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	paths := make([]string, 0, len(e.stores))
	for p := range e.stores {
		paths = append(paths, p)
	}
	return paths
}

// Close closes every open store.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for path, db := range e.stores {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", path, err))
		}
		delete(e.stores, path)
	}
	return errors.Join(errs...)
}

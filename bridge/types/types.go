// Package types holds the wire contract shared by the bridge client, the
// transports and the host-side executor.
//
// Every exchange is a named command with a JSON payload and a single JSON
// reply. The command names and JSON field names below must be reproduced
// exactly by any executor or client implementation.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command names understood by the executor.
const (
	CommandLoad      = "load"
	CommandOpen      = "open"
	CommandSetPragma = "set_pragma"
	CommandSelect    = "select"
	CommandExecute   = "execute"
	CommandBatch     = "batch"
	CommandClose     = "close"
)

// OpenOptions is passed opaquely to the executor when a store is opened or
// loaded. A nil or absent DisableForeignKeys keeps foreign key enforcement on.
type OpenOptions struct {
	DisableForeignKeys *bool `json:"disable_foreign_keys,omitempty"`
}

// ForeignKeysDisabled reports whether the options ask for foreign key
// enforcement to be turned off.
func (o *OpenOptions) ForeignKeysDisabled() bool {
	return o != nil && o.DisableForeignKeys != nil && *o.DisableForeignKeys
}

// --- Request payloads ---

// LoadRequest asks the executor to pick or create a managed store.
type LoadRequest struct {
	Options OpenOptions `json:"options"`
}

// OpenRequest asks the executor to open the store at DBPath.
type OpenRequest struct {
	DBPath  string      `json:"dbPath"`
	Options OpenOptions `json:"options"`
}

// SetPragmaRequest sets a single pragma on an opened store.
type SetPragmaRequest struct {
	DBPath string `json:"dbPath"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

// QueryRequest is used by both the select and execute commands. Params are
// positional and bound to ?1, ?2, ... in order.
type QueryRequest struct {
	DBPath string `json:"dbPath"`
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// BatchRequest runs every query in order inside one transaction.
type BatchRequest struct {
	DBPath  string  `json:"dbPath"`
	Queries []Query `json:"queries"`
}

// CloseRequest releases the executor-side resources of a store.
type CloseRequest struct {
	DBPath string `json:"dbPath"`
}

// Query is one (sql, params) pair. On the wire it is a two-element array:
// ["DELETE FROM person WHERE age < ?1", [18]]. Decoded numeric parameters
// are json.Number values.
type Query struct {
	SQL    string
	Params []any
}

// NewQuery builds a Query from SQL text and its positional parameters.
func NewQuery(sql string, params ...any) Query {
	if params == nil {
		params = []any{}
	}
	return Query{SQL: sql, Params: params}
}

func (q Query) MarshalJSON() ([]byte, error) {
	params := q.Params
	if params == nil {
		params = []any{}
	}
	return json.Marshal([2]any{q.SQL, params})
}

func (q *Query) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("query must be a [sql, params] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("query must be a [sql, params] array, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &q.SQL); err != nil {
		return fmt.Errorf("query sql: %w", err)
	}
	q.Params = nil
	dec := json.NewDecoder(bytes.NewReader(pair[1]))
	dec.UseNumber()
	if err := dec.Decode(&q.Params); err != nil {
		return fmt.Errorf("query params: %w", err)
	}
	if q.Params == nil {
		q.Params = []any{}
	}
	return nil
}

// --- Envelopes for byte-oriented transports ---

// Envelope wraps a command and its JSON arguments for transports that move
// raw bytes (in-process, wasm memory).
type Envelope struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Reply carries either a JSON result or an executor error message.
type Reply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HostError is an executor-signalled failure as seen by the client side of
// a transport.
type HostError struct {
	Command string
	Message string
	// StatusCode is set by transports that have one (HTTP).
	StatusCode int
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

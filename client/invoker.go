package client

import (
	"context"
	"encoding/json"
)

// Invoker dispatches one command to the executor and returns its raw JSON
// reply. args is one of the request structs from bridge/types. A non-nil
// error is the executor's failure and is handed back to callers untouched.
type Invoker interface {
	Invoke(ctx context.Context, command string, args any) (json.RawMessage, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, command string, args any) (json.RawMessage, error)

func (f InvokerFunc) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	return f(ctx, command, args)
}

// Package local is an in-process transport: it hands marshalled commands
// straight to an executor running in the same process.
package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tomyedwab/sqlbridge/bridge/types"
)

// Handler is the byte-level entry point of an executor.
type Handler interface {
	HandleRequest(ctx context.Context, requestPayload []byte) ([]byte, error)
}

// Invoker implements client.Invoker on top of a Handler.
type Invoker struct {
	handler Handler
}

// New returns an Invoker dispatching to h.
func New(h Handler) *Invoker {
	return &Invoker{handler: h}
}

// Invoke marshals args into an envelope, passes it to the handler and
// unpacks the reply. An error in the reply becomes a *types.HostError.
func (i *Invoker) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("local: failed to marshal %s request: %w", command, err)
	}
	reqPayload, err := json.Marshal(types.Envelope{Command: command, Args: argsJSON})
	if err != nil {
		return nil, fmt.Errorf("local: failed to marshal %s envelope: %w", command, err)
	}

	respPayload, err := i.handler.HandleRequest(ctx, reqPayload)
	if err != nil {
		return nil, fmt.Errorf("local: %s failed: %w", command, err)
	}
	return DecodeReply(command, respPayload)
}

// DecodeReply unpacks a marshalled types.Reply. It is shared with other
// byte-oriented transports.
func DecodeReply(command string, payload []byte) (json.RawMessage, error) {
	var reply types.Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s reply: %w", command, err)
	}
	if reply.Error != "" {
		return nil, &types.HostError{Command: command, Message: reply.Error}
	}
	return reply.Result, nil
}

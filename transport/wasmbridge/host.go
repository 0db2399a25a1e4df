// Package wasmbridge exposes an executor to WebAssembly guests running under
// wazero.
//
// The host module "env" exports one function:
//
//	sqlbridge_invoke(reqPtr, reqLen, destPtr uint32) int32
//
// The guest passes a marshalled types.Envelope in its own memory. The host
// runs it, asks the guest for a buffer through the guest's exported
// sqlbridge_alloc(size uint32) uint32, copies the marshalled types.Reply
// there and stores the buffer address at destPtr. The return value is the
// reply length, negated when the buffer holds a bare error message instead
// of a reply. Zero means nothing was written.
package wasmbridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	// ModuleName is the import module guests link against.
	ModuleName = "env"
	// InvokeFunction is the host function guests call.
	InvokeFunction = "sqlbridge_invoke"
	// AllocFunction is the guest export used to place replies.
	AllocFunction = "sqlbridge_alloc"
)

// Handler is the byte-level entry point of an executor.
type Handler interface {
	HandleRequest(ctx context.Context, requestPayload []byte) ([]byte, error)
}

type hostModule struct {
	handler Handler
	log     zerolog.Logger
}

// Instantiate registers the bridge host module on r. It must be called
// before any guest importing it is instantiated.
func Instantiate(ctx context.Context, r wazero.Runtime, h Handler, log zerolog.Logger) (api.Module, error) {
	hm := &hostModule{
		handler: h,
		log:     log.With().Str("component", "wasmbridge").Logger(),
	}
	mod, err := r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().WithFunc(hm.invoke).Export(InvokeFunction).
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("wasmbridge: failed to instantiate host module: %w", err)
	}
	return mod, nil
}

func (h *hostModule) invoke(ctx context.Context, m api.Module, reqPtr, reqLen, destPtr uint32) int32 {
	buf, ok := m.Memory().Read(reqPtr, reqLen)
	if !ok {
		return h.write(ctx, m, destPtr, []byte(fmt.Sprintf("request (%d, %d) out of range", reqPtr, reqLen)), true)
	}
	// The view aliases guest memory, which may move if the guest allocates.
	request := make([]byte, len(buf))
	copy(request, buf)

	response, err := h.handler.HandleRequest(ctx, request)
	if err != nil {
		h.log.Error().Err(err).Msg("error handling guest request")
		return h.write(ctx, m, destPtr, []byte(err.Error()), true)
	}
	return h.write(ctx, m, destPtr, response, false)
}

// write copies data into a guest-allocated buffer and returns the length to
// hand back to the guest.
func (h *hostModule) write(ctx context.Context, m api.Module, destPtr uint32, data []byte, isError bool) int32 {
	if len(data) == 0 {
		return 0
	}
	alloc := m.ExportedFunction(AllocFunction)
	if alloc == nil {
		h.log.Error().Str("module", m.Name()).Msg("guest does not export " + AllocFunction)
		return 0
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		h.log.Error().Err(err).Int("size", len(data)).Msg("guest allocation failed")
		return 0
	}
	ptr := uint32(results[0])
	if !m.Memory().Write(ptr, data) || !m.Memory().WriteUint32Le(destPtr, ptr) {
		h.log.Error().Uint32("ptr", ptr).Int("size", len(data)).Msg("guest memory write out of range")
		return 0
	}
	n := int32(len(data))
	if isError {
		return -n
	}
	return n
}

//go:build wasip1

package guest

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/tomyedwab/sqlbridge/bridge/types"
)

//go:wasmimport env sqlbridge_invoke
func sqlbridgeInvoke(reqPtr, reqLen, destPtr uint32) int32

// allocations keeps host-written buffers reachable until Invoke reads them.
var allocations = map[uint32][]byte{}

//go:wasmexport sqlbridge_alloc
func sqlbridgeAlloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	allocations[ptr] = buf
	return ptr
}

// Invoker sends commands to the host. Guests are single threaded; an Invoker
// must not be used from several goroutines at once.
type Invoker struct{}

func (Invoker) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("wasmbridge: failed to marshal %s request: %w", command, err)
	}
	payload, err := json.Marshal(types.Envelope{Command: command, Args: argsJSON})
	if err != nil {
		return nil, fmt.Errorf("wasmbridge: failed to marshal %s envelope: %w", command, err)
	}

	var dest uint32
	n := sqlbridgeInvoke(
		uint32(uintptr(unsafe.Pointer(unsafe.SliceData(payload)))),
		uint32(len(payload)),
		uint32(uintptr(unsafe.Pointer(&dest))),
	)
	runtime.KeepAlive(payload)

	buf := allocations[dest]
	delete(allocations, dest)

	return decodeHostReply(command, n, buf)
}

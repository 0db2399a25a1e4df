// Package guest is the WebAssembly side of the wasm bridge. Its Invoker
// satisfies client.Invoker inside a module linked against the host module
// registered by wasmbridge.Instantiate.
package guest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tomyedwab/sqlbridge/transport/local"
)

// decodeHostReply interprets the result of sqlbridge_invoke: n is the reply
// length, negated for a bare error message, and buf is the buffer the host
// allocated for it.
func decodeHostReply(command string, n int32, buf []byte) (json.RawMessage, error) {
	size := int(n)
	if size < 0 {
		size = -size
	}
	switch {
	case n == 0:
		return nil, errors.New("wasmbridge: host returned no reply")
	case len(buf) < size:
		return nil, fmt.Errorf("wasmbridge: host reported %d bytes, buffer holds %d", size, len(buf))
	case n < 0:
		return nil, fmt.Errorf("wasmbridge: host error: %s", buf[:size])
	default:
		return local.DecodeReply(command, buf[:size])
	}
}

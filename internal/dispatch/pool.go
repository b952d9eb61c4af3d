package dispatch

import (
	"bytes"
	"encoding/json"
	"sync"
)

// bufferPool reuses the scratch buffers behind envelope encoding: Handle
// is called once per request from the extension's message port or the
// CLI, and pooling the buffer avoids a fresh allocation on every call.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// encodeEnvelope marshals env using a pooled buffer, returning a
// freshly-copied slice so the pooled buffer can be reset and reused
// immediately without aliasing the caller's result.
func encodeEnvelope(env envelope) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(env); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

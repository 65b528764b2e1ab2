package scheduler

import "encoding/json"

// encodeResult JSON-encodes a handler's success value for storage in the
// task's opaque result blob (spec.md §3). Handlers are documented to
// return JSON-serializable values (spec.md §6); encoding/json is the
// natural fit since nothing in the retrieval pack reaches for a
// third-party JSON library for this kind of ad hoc value encoding — gin
// and gorm pull in bytedance/sonic and goccy/go-json only as internal,
// indirect speedups, never as an API surface callers use directly.
func encodeResult(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

package packet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/opd-ai/corecrypto/crypto"
)

// Canonicalize returns the deterministic JSON encoding of v: object keys
// sorted at every depth, no insignificant whitespace, HTML characters left
// unescaped and numbers kept exactly as written. Two structurally equal
// values always produce identical bytes regardless of key order.
//
// A json.RawMessage or []byte argument is taken as already-encoded JSON and
// re-canonicalized, not marshaled as a base64 string.
func Canonicalize(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidEncoding, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidEncoding, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", crypto.ErrInvalidEncoding)
	}

	// encoding/json writes map keys in sorted order.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidEncoding, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

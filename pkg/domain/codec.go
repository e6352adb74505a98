package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Extra holds wire fields the editor does not interpret.
// They are written back verbatim so the runtime never loses data it owns.
type Extra map[string]json.RawMessage

// Clone returns a deep copy of the extra fields.
func (e Extra) Clone() Extra {
	if e == nil {
		return nil
	}
	out := make(Extra, len(e))
	for k, v := range e {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// splitObject decodes a JSON object into its raw fields.
func splitObject(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = make(map[string]json.RawMessage)
	}
	return raw, nil
}

// take decodes raw[key] into dst and removes the key, so whatever is left
// over becomes the Extra of the value being decoded.
func take(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

// leftover turns the remaining raw fields into an Extra, or nil when empty.
func leftover(raw map[string]json.RawMessage) Extra {
	if len(raw) == 0 {
		return nil
	}
	return Extra(raw)
}

// joinObject merges known fields over the extras and encodes the result.
// Known fields win when a key appears in both.
func joinObject(extra Extra, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	maps.Copy(out, known)
	return json.Marshal(out)
}

package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flatten converts an SDK struct into a generic field map. Numbers are kept
// as json.Number so quantities survive without float rounding.
func Flatten(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode provider record: %w", err)
	}
	return fields, nil
}

// DecodeFields decodes a JSON object the same way Flatten does.
func DecodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode provider record: %w", err)
	}
	return fields, nil
}

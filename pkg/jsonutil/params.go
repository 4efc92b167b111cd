// Package jsonutil decodes query parameters given as JSON.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DecodeParams decodes a JSON array into []any or a JSON object into
// map[string]any. Integral numbers become int64 and other numbers float64,
// so they dump as int8 and float8. Empty input or null means no parameters
// and returns nil.
func DecodeParams(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid params JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid params JSON: trailing data")
	}

	switch v.(type) {
	case nil:
		return nil, nil
	case []any, map[string]any:
		return normalize(v)
	default:
		return nil, fmt.Errorf("params must be a JSON array or object, got %s", describe(v))
	}
}

func normalize(v any) (any, error) {
	switch vv := v.(type) {
	case json.Number:
		return number(vv)
	case []any:
		for i, elem := range vv {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			vv[i] = n
		}
		return vv, nil
	case map[string]any:
		for k, elem := range vv {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			vv[k] = n
		}
		return vv, nil
	default:
		return v, nil
	}
}

func number(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("number %s out of range: %w", s, err)
	}
	return f, nil
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

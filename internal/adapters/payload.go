package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is an upstream JSON document of unknown exact shape.
type Payload map[string]any

// ParsePayload decodes raw JSON, keeping numbers as json.Number so ids and
// prices survive untouched.
func ParsePayload(raw []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("adapters: decode payload: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// Lookup walks a dot separated path through nested objects.
func (p Payload) Lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Payload:
		return map[string]any(t), true
	}
	return nil, false
}

// scalarString renders a scalar JSON value. Objects and arrays are not scalars.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func scalarInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// decodeInto re-encodes v and decodes it into target.
func decodeInto(v any, target any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

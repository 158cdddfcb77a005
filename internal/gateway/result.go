package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/noteskeeper/internal/errs"
)

// Result is the single JSON object printed by the backend.
type Result struct {
	raw    []byte
	fields map[string]json.RawMessage
}

// Raw returns the JSON object as received.
func (r *Result) Raw() json.RawMessage { return json.RawMessage(r.raw) }

// Has reports whether the object has key.
func (r *Result) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// String returns key as a string; numbers are rendered in their JSON form.
func (r *Result) String(key string) string {
	v, ok := r.fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if string(v) == "null" {
		return ""
	}
	return string(v)
}

// Message returns the "message" field.
func (r *Result) Message() string { return r.String("message") }

// Err returns a *errs.DomainError when the object carries an "error" key.
func (r *Result) Err() error {
	if !r.Has("error") {
		return nil
	}
	msg := r.String("error")
	if msg == "" {
		msg = "unknown error"
	}
	return errs.Domain(msg)
}

// Decode unmarshals the object into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidResponse, err)
	}
	return nil
}

// MarshalJSON forwards the original object.
func (r *Result) MarshalJSON() ([]byte, error) { return r.raw, nil }

// ParseResult validates out as a single non-empty JSON object.
func ParseResult(out []byte) (*Result, error) { return parse(out) }

// Package status implements the tagged success/failure result type
// carried in call and response payloads. A Status is either Ok with an
// arbitrary value, or an error code with a human-readable message, and
// serializes to a stable two-field JSON form that round-trips without
// losing the tag.
package status

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Code identifies the variant of a Status. CodeOk is the only success
// tag; every other recognized code is a failure.
type Code string

const (
	CodeOk               Code = "Ok"
	CodeMessageTimeout   Code = "MessageTimeout"
	CodeNotFound         Code = "NotFound"
	CodeConnectionClosed Code = "ConnectionClosed"
)

var (
	codesMutex      sync.RWMutex
	recognizedCodes = map[Code]bool{
		CodeOk:               true,
		CodeMessageTimeout:   true,
		CodeNotFound:         true,
		CodeConnectionClosed: true,
	}
)

// RegisterCode adds an application-defined failure code to the
// recognized set. Unrecognized tags are rejected during decoding, so
// both endpoints must register the same codes.
func RegisterCode(code Code) {
	codesMutex.Lock()
	defer codesMutex.Unlock()
	recognizedCodes[code] = true
}

func isRecognized(code Code) bool {
	codesMutex.RLock()
	defer codesMutex.RUnlock()
	return recognizedCodes[code]
}

// Status is a tagged union: either Ok carrying a value, or a failure
// code carrying a message. The zero value is Ok with a nil value.
type Status struct {
	code    Code
	value   any    // valid only when code == CodeOk
	message string // valid only when code != CodeOk
}

// Ok returns a success Status carrying value.
func Ok(value any) Status {
	return Status{code: CodeOk, value: value}
}

// Err returns a failure Status with the given code and message.
func Err(code Code, message string) Status {
	return Status{code: code, message: message}
}

// Errf returns a failure Status with a formatted message.
func Errf(code Code, format string, args ...any) Status {
	return Status{code: code, message: fmt.Sprintf(format, args...)}
}

// IsOk reports whether s carries a success value.
func (s Status) IsOk() bool {
	return s.code == CodeOk || s.code == ""
}

// Code returns the variant tag. The zero value reports CodeOk.
func (s Status) Code() Code {
	if s.code == "" {
		return CodeOk
	}
	return s.code
}

// Value returns the success value; nil for failure Statuses.
func (s Status) Value() any {
	return s.value
}

// Message returns the failure message; empty for success Statuses.
func (s Status) Message() string {
	return s.message
}

func (s Status) String() string {
	if s.IsOk() {
		return fmt.Sprintf("Ok(%v)", s.value)
	}
	return fmt.Sprintf("%s(%s)", s.code, s.message)
}

const (
	tagField     = "status"
	payloadField = "payload"
)

// MarshalJSON encodes s as the two-field wire form
// {"status": tag, "payload": value-or-message}. A Status nested inside
// the success value is substituted recursively by the JSON encoder.
func (s Status) MarshalJSON() ([]byte, error) {
	wire := make(map[string]any, 2)
	if s.IsOk() {
		wire[tagField] = string(CodeOk)
		wire[payloadField] = s.value
	} else {
		wire[tagField] = string(s.code)
		wire[payloadField] = s.message
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the two-field wire form, restoring any nested
// serialized Status values inside a success payload.
func (s *Status) UnmarshalJSON(data []byte) error {
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded, ok := FromWire(wire)
	if !ok {
		return fmt.Errorf("status: malformed wire form: %s", data)
	}
	*s = decoded
	return nil
}

// IsWireForm reports whether v has the exact shape of a serialized
// Status: a two-field map whose tag is a recognized code, with a
// payload of the right kind for the tag.
func IsWireForm(v any) bool {
	_, ok := FromWire(v)
	return ok
}

// FromWire converts a decoded JSON value in the two-field wire form
// back into a Status. It returns false for anything malformed: wrong
// field count, missing fields, a non-string or unrecognized tag, or a
// failure payload that is not a string.
func FromWire(v any) (Status, bool) {
	wire, ok := v.(map[string]any)
	if !ok || len(wire) != 2 {
		return Status{}, false
	}
	rawTag, ok := wire[tagField]
	if !ok {
		return Status{}, false
	}
	payload, ok := wire[payloadField]
	if !ok {
		return Status{}, false
	}
	tag, ok := rawTag.(string)
	if !ok || !isRecognized(Code(tag)) {
		return Status{}, false
	}
	if Code(tag) == CodeOk {
		return Ok(Restore(payload)), true
	}
	message, ok := payload.(string)
	if !ok {
		return Status{}, false
	}
	return Err(Code(tag), message), true
}

// Substitute walks a value and replaces every Status with its
// two-field wire form. json.Marshal applies the same substitution
// through MarshalJSON; Substitute is for callers that need the wire
// shape as plain maps, e.g. to inspect or rewrite a payload before
// encoding.
func Substitute(v any) any {
	switch value := v.(type) {
	case Status:
		wire := make(map[string]any, 2)
		if value.IsOk() {
			wire[tagField] = string(CodeOk)
			wire[payloadField] = Substitute(value.value)
		} else {
			wire[tagField] = string(value.code)
			wire[payloadField] = value.message
		}
		return wire
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, elem := range value {
			out[k] = Substitute(elem)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = Substitute(elem)
		}
		return out
	default:
		return v
	}
}

// Restore walks a decoded JSON value and replaces every map shaped
// like a serialized Status with the corresponding Status value. This
// is the inverse of the substitution MarshalJSON performs, applied as
// values are reconstructed from the wire.
func Restore(v any) any {
	switch value := v.(type) {
	case map[string]any:
		if restored, ok := FromWire(value); ok {
			return restored
		}
		out := make(map[string]any, len(value))
		for k, elem := range value {
			out[k] = Restore(elem)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = Restore(elem)
		}
		return out
	default:
		return v
	}
}

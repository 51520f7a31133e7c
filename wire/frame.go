// Package wire defines the frame shapes exchanged over the socket and
// the JSON codec for them. A frame carries exactly one of three
// payloads: a fire-and-forget emit, a correlated call, or the response
// resolving a call.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/onoro/status"
)

// ErrMalformedFrame marks decode failures. Malformed inbound frames
// are logged and dropped by the receiver; they never tear down the
// connection.
var ErrMalformedFrame = errors.New("malformed frame")

// Emit is a one-way notification. Args is nil when the event takes no
// arguments, which serializes as JSON null rather than an empty array.
type Emit struct {
	Event string `json:"event"`
	Args  []any  `json:"args"`
}

// Call is a request expecting exactly one Response carrying the same
// correlation id.
type Call struct {
	Event string `json:"event"`
	UUID  string `json:"uuid"`
	Args  []any  `json:"args"`
}

// Response resolves the pending call identified by UUID.
type Response struct {
	UUID   string        `json:"uuid"`
	Status status.Status `json:"status"`
}

// UnmarshalJSON decodes a response, requiring the status member to be
// present. The zero Status reads as Ok(nil), so an absent field cannot
// be told apart from a real success after decoding; it is rejected
// here instead.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		UUID   string          `json:"uuid"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Status) == 0 {
		return fmt.Errorf("response %q has no status", raw.UUID)
	}
	var st status.Status
	if err := json.Unmarshal(raw.Status, &st); err != nil {
		return err
	}
	*r = Response{UUID: raw.UUID, Status: st}
	return nil
}

// Frame is the top-level wire unit. Exactly one field is non-nil.
type Frame struct {
	Emit     *Emit     `json:"emit,omitempty"`
	Call     *Call     `json:"call,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// Kind identifies which of the three payloads a frame carries.
type Kind int

const (
	KindInvalid Kind = iota
	KindEmit
	KindCall
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindEmit:
		return "emit"
	case KindCall:
		return "call"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Kind returns the payload kind, or KindInvalid if the frame does not
// have exactly one payload set.
func (f *Frame) Kind() Kind {
	var (
		kind Kind
		set  int
	)
	if f.Emit != nil {
		kind = KindEmit
		set++
	}
	if f.Call != nil {
		kind = KindCall
		set++
	}
	if f.Response != nil {
		kind = KindResponse
		set++
	}
	if set != 1 {
		return KindInvalid
	}
	return kind
}

func (f *Frame) validate() error {
	switch f.Kind() {
	case KindEmit:
		if f.Emit.Event == "" {
			return fmt.Errorf("%w: emit with empty event", ErrMalformedFrame)
		}
	case KindCall:
		if f.Call.Event == "" {
			return fmt.Errorf("%w: call with empty event", ErrMalformedFrame)
		}
		if f.Call.UUID == "" {
			return fmt.Errorf("%w: call %q with empty uuid", ErrMalformedFrame, f.Call.Event)
		}
	case KindResponse:
		if f.Response.UUID == "" {
			return fmt.Errorf("%w: response with empty uuid", ErrMalformedFrame)
		}
	default:
		return fmt.Errorf("%w: frame must carry exactly one of emit/call/response", ErrMalformedFrame)
	}
	return nil
}

// Encode serializes a frame to its JSON text form. Status values
// anywhere inside args or the response status are substituted with
// their two-field wire form by the Status marshaler.
func Encode(f *Frame) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return data, nil
}

// Decode parses one JSON text frame. Serialized Status values inside
// call and emit args are restored as the args are reconstructed. Any
// parse or shape failure is reported as ErrMalformedFrame.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	switch f.Kind() {
	case KindEmit:
		restoreArgs(f.Emit.Args)
	case KindCall:
		restoreArgs(f.Call.Args)
	}
	return &f, nil
}

func restoreArgs(args []any) {
	for i, arg := range args {
		args[i] = status.Restore(arg)
	}
}

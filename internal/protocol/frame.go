// Package protocol implements the wire framing, request tokenizer, and
// JSON reply envelope of spec.md §4.L/§6: a 2-byte big-endian length
// prefix around UTF-8 command text, and a "status"/"reason"/named-items
// JSON object in reply.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Greeting is written once per connection, spec.md §6.
const Greeting = "musingd v1.0.0\n"

// maxFrameLen bounds a single request body; well above any real command
// line, it exists only to keep a corrupt length prefix from causing an
// unbounded allocation.
const maxFrameLen = 1 << 20

// ReadFrame reads one length-prefixed UTF-8 command from r.
func ReadFrame(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if int(n) > maxFrameLen {
		return "", fmt.Errorf("frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// WriteFrame writes the reply envelope's raw JSON bytes followed by a
// trailing newline, the convenience delimiter spec.md §6 permits as long
// as it's applied consistently.
func WriteFrame(w io.Writer, replyJSON []byte) error {
	if _, err := w.Write(replyJSON); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// Reply is the JSON object every response is encoded as: status, an
// optional reason on error, and zero or more named items on success.
type Reply struct {
	Status string         `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Items  map[string]any `json:"-"`
}

// MarshalJSON flattens Items alongside status/reason into one object,
// since the envelope has no nested "items" key — named items sit at the
// top level (spec.md §4.L: "zero or more named items").
func (r Reply) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Items)+2)
	out["status"] = r.Status
	if r.Reason != "" {
		out["reason"] = r.Reason
	}
	for k, v := range r.Items {
		out[k] = v
	}
	return json.Marshal(out)
}

// OK builds a successful reply with the given named items.
func OK(items map[string]any) Reply {
	return Reply{Status: "OK", Items: items}
}

// Err builds a failed reply. reason must already carry the "<Kind>: "
// prefix (errkind.Wrap's Error() string does this).
func Err(reason string) Reply {
	return Reply{Status: "ERR", Reason: reason}
}

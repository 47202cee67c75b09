// ABOUTME: Closed content variant (text/json/blob) used for all tool results.
// ABOUTME: Serialization is total and order-preserving; unknown variants are rejected.

package content

import (
	"encoding/json"
	"fmt"
)

// PartType identifies one of the three content variants.
type PartType string

const (
	TypeText PartType = "text"
	TypeJSON PartType = "json"
	TypeBlob PartType = "blob"
)

// Part is one typed unit of tool output. Exactly one variant is populated,
// selected by Type. Parts are produced in order and that order is preserved
// through serialization.
type Part struct {
	Type     PartType
	Text     string
	JSON     json.RawMessage
	Blob     []byte
	MimeType string
}

// Text returns a text part.
func TextPart(text string) Part {
	return Part{Type: TypeText, Text: text}
}

// JSONPart marshals v into a json part.
func JSONPart(v any) (Part, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Part{}, fmt.Errorf("encoding json part: %w", err)
	}
	return Part{Type: TypeJSON, JSON: raw}, nil
}

// BlobPart returns a binary part with its MIME type. Data is base64-encoded
// on the wire.
func BlobPart(data []byte, mimeType string) Part {
	return Part{Type: TypeBlob, Blob: data, MimeType: mimeType}
}

// partWire is the JSON shape of a Part. Blob uses encoding/json's native
// base64 handling for []byte.
type partWire struct {
	Type     PartType        `json:"type"`
	Text     *string         `json:"text,omitempty"`
	JSON     json.RawMessage `json:"json,omitempty"`
	Blob     []byte          `json:"blob,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Part) MarshalJSON() ([]byte, error) {
	w := partWire{Type: p.Type}
	switch p.Type {
	case TypeText:
		w.Text = &p.Text
	case TypeJSON:
		w.JSON = p.JSON
	case TypeBlob:
		w.Blob = p.Blob
		w.MimeType = p.MimeType
	default:
		return nil, fmt.Errorf("unknown content part type %q", p.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown part types are an
// error so that decoding stays total over the closed variant.
func (p *Part) UnmarshalJSON(data []byte) error {
	var w partWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case TypeText:
		p.Type = TypeText
		if w.Text != nil {
			p.Text = *w.Text
		}
	case TypeJSON:
		*p = Part{Type: TypeJSON, JSON: w.JSON}
	case TypeBlob:
		*p = Part{Type: TypeBlob, Blob: w.Blob, MimeType: w.MimeType}
	default:
		return fmt.Errorf("unknown content part type %q", w.Type)
	}
	return nil
}

// Result is an ordered sequence of content parts with an optional error flag.
type Result struct {
	Parts   []Part `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// NewResult builds a result from parts in the order given.
func NewResult(parts ...Part) *Result {
	return &Result{Parts: parts}
}

// FirstJSON returns the raw value of the first json part, or nil if the
// result has none.
func (r *Result) FirstJSON() json.RawMessage {
	for _, p := range r.Parts {
		if p.Type == TypeJSON {
			return p.JSON
		}
	}
	return nil
}

// Texts returns all text part values in order.
func (r *Result) Texts() []string {
	var out []string
	for _, p := range r.Parts {
		if p.Type == TypeText {
			out = append(out, p.Text)
		}
	}
	return out
}

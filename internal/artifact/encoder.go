// Package artifact turns notarizable records into canonical bytes and
// fingerprints them.
//
// File records encode as the raw payload followed by the canonical JSON of
// their metadata. Business records encode as the canonical JSON of their five
// declared fields. Canonical JSON is compact, sorts object keys by codepoint
// and does not escape HTML characters.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Encode returns the canonical byte form of r. Equal records always produce
// identical bytes regardless of map insertion order.
func Encode(r Record) ([]byte, error) {
	switch r.Kind() {
	case KindFile:
		return encodeFile(r)
	case KindBusiness:
		return encodeBusiness(r)
	default:
		if r.File != nil {
			return nil, encodingError("payload", "record carries both file bytes and structured fields")
		}
		return nil, encodingError("payload", "record carries no payload")
	}
}

func encodeFile(r Record) ([]byte, error) {
	meta, err := CanonicalJSON(r.Metadata)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(r.File)+len(meta))
	out = append(out, r.File...)
	out = append(out, meta...)
	return out, nil
}

func encodeBusiness(r Record) ([]byte, error) {
	if len(r.Metadata) > 0 {
		return nil, encodingError("metadata", "business records carry their attributes as fields")
	}
	for _, key := range businessFieldKeys {
		if r.Fields[key] == "" {
			return nil, encodingError(key, "required field is missing")
		}
	}
	if len(r.Fields) != len(businessFieldKeys) {
		return nil, encodingError("fields", "unexpected business field")
	}
	return CanonicalJSON(r.Fields)
}

// CanonicalJSON encodes a string map as compact JSON with sorted keys.
// A nil or empty map encodes as {}.
func CanonicalJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	for k, v := range m {
		if k == "" {
			return nil, encodingError("metadata", "empty key")
		}
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return nil, encodingError(k, "value is not valid UTF-8")
		}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, &EncodingError{Field: "metadata", Err: fmt.Errorf("marshal: %w", err)}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

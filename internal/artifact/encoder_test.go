package artifact

import (
	"bytes"
	"errors"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "arkv/pkg/domain"
)

func techCorp() BusinessFields {
	return BusinessFields{
		EntityName: "TechCorp LLC",
		Domain:     "techcorp.com",
		Country:    "US",
		LegalType:  "LLC",
		Category:   "Technology",
	}
}

func TestEncode_Business(t *testing.T) {
	t.Run("sorted compact JSON of the five fields", func(t *testing.T) {
		got, err := Encode(NewBusinessRecord(techCorp()))
		require.NoError(t, err)
		assert.Equal(t,
			`{"category":"Technology","country":"US","domain":"techcorp.com","entityName":"TechCorp LLC","legalType":"LLC"}`,
			string(got))
	})

	t.Run("known fingerprint", func(t *testing.T) {
		fp, err := FingerprintRecord(NewBusinessRecord(techCorp()))
		require.NoError(t, err)
		assert.Equal(t, id.Fingerprint("69c698c5b973e0f46e4c79a0e98184779ee00d503e19cab55c40b25ca9af399f"), fp)
	})

	t.Run("missing required field", func(t *testing.T) {
		f := techCorp()
		f.Country = ""
		_, err := Encode(NewBusinessRecord(f))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEncoding)

		var encErr *EncodingError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, FieldCountry, encErr.Field)
	})

	t.Run("metadata on a business record is rejected", func(t *testing.T) {
		r := NewBusinessRecord(techCorp())
		r.Metadata = map[string]string{"note": "x"}
		_, err := Encode(r)
		assert.ErrorIs(t, err, ErrEncoding)
	})
}

func TestEncode_File(t *testing.T) {
	t.Run("payload then metadata", func(t *testing.T) {
		r := NewFileRecord([]byte("hello world"), map[string]string{"title": "Deed", "creator": "Ana <a&b>"})
		got, err := Encode(r)
		require.NoError(t, err)
		assert.Equal(t, `hello world{"creator":"Ana <a&b>","title":"Deed"}`, string(got))
		assert.Equal(t, id.Fingerprint("4f1a3cd40038c75607a659ba4ab891483f547d2efd38537aeb3d6e4238e2d692"), Fingerprint(got))
	})

	t.Run("no metadata encodes empty object", func(t *testing.T) {
		got, err := Encode(NewFileRecord([]byte{0x00, 0xff}, nil))
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff, '{', '}'}, got)
	})

	t.Run("both payloads is ambiguous", func(t *testing.T) {
		r := NewBusinessRecord(techCorp())
		r.File = []byte("x")
		_, err := Encode(r)
		assert.ErrorIs(t, err, ErrEncoding)
	})

	t.Run("no payload", func(t *testing.T) {
		_, err := Encode(Record{})
		assert.ErrorIs(t, err, ErrEncoding)
	})

	t.Run("invalid UTF-8 metadata", func(t *testing.T) {
		_, err := Encode(NewFileRecord([]byte("x"), map[string]string{"title": string([]byte{0xff})}))
		assert.ErrorIs(t, err, ErrEncoding)
	})
}

func TestFingerprintStream_MatchesRecord(t *testing.T) {
	payload := bytes.Repeat([]byte("arkv"), 4096)
	meta := map[string]string{"title": "Report", "category": "audit"}

	want, err := FingerprintRecord(NewFileRecord(payload, meta))
	require.NoError(t, err)

	got, n, err := FingerprintStream(bytes.NewReader(payload), meta)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(len(payload)), n)
}

// TestEncode_Properties checks determinism and metadata sensitivity over random inputs.
//
// Justification: the fingerprint is only meaningful if equal records always
// encode identically and any metadata change alters the digest.
func TestEncode_Properties(t *testing.T) {
	deterministic := func(payload []byte, keys, values []string) bool {
		meta := zipValid(keys, values)
		a, errA := FingerprintRecord(NewFileRecord(nonNil(payload), meta))
		b, errB := FingerprintRecord(NewFileRecord(nonNil(payload), reinsert(meta)))
		return errA == nil && errB == nil && a == b
	}
	require.NoError(t, quick.Check(deterministic, nil))

	sensitive := func(payload []byte, keys, values []string, extra string) bool {
		meta := zipValid(keys, values)
		before, err := FingerprintRecord(NewFileRecord(nonNil(payload), meta))
		if err != nil {
			return false
		}
		changed := reinsert(meta)
		changed["title"] = changed["title"] + "!" + extra
		after, err := FingerprintRecord(NewFileRecord(nonNil(payload), changed))
		return err == nil && before != after
	}
	require.NoError(t, quick.Check(sensitive, nil))
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// zipValid pairs keys with values, dropping pairs that the encoder would reject.
func zipValid(keys, values []string) map[string]string {
	out := map[string]string{}
	for i := 0; i < len(keys) && i < len(values); i++ {
		if keys[i] == "" || !validUTF8(keys[i]) || !validUTF8(values[i]) {
			continue
		}
		out[keys[i]] = values[i]
	}
	return out
}

func validUTF8(s string) bool {
	_, err := CanonicalJSON(map[string]string{"k": s})
	return err == nil
}

// reinsert copies m in reverse key order so map construction order differs.
func reinsert(m map[string]string) map[string]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	out := make(map[string]string, len(m))
	for i := len(keys) - 1; i >= 0; i-- {
		out[keys[i]] = m[keys[i]]
	}
	return out
}

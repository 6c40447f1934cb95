package domain

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "arkv/pkg/domain-errors"
)

// TestParseFingerprint_Invariants validates the parsing invariant:
// "fingerprints are 64 lower-case hex characters without prefix"
//
// Justification: fingerprints cross every trust boundary (HTTP, DNS, ledger data).
func TestParseFingerprint_Invariants(t *testing.T) {
	digest := sha256.Sum256([]byte("hello"))
	canonical := FingerprintFromDigest(digest)

	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseFingerprint("  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseFingerprint("abc123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParseFingerprint(strings.Repeat("z", FingerprintLength))
		require.Error(t, err)
	})

	t.Run("strips 0x prefix and lower-cases", func(t *testing.T) {
		fp, err := ParseFingerprint("0x" + strings.ToUpper(canonical.String()))
		require.NoError(t, err)
		assert.Equal(t, canonical, fp)
	})

	t.Run("hex form carries the ledger prefix", func(t *testing.T) {
		assert.Equal(t, "0x"+canonical.String(), canonical.Hex())
		assert.Len(t, canonical.Bytes(), 32)
	})
}

func TestFingerprintPrefix(t *testing.T) {
	fp := FingerprintFromDigest(sha256.Sum256([]byte("techcorp")))

	t.Run("matches leading characters", func(t *testing.T) {
		p, err := ParseFingerprintPrefix(fp.String()[:6])
		require.NoError(t, err)
		assert.True(t, p.Matches(fp))
	})

	t.Run("full fingerprint is its own prefix", func(t *testing.T) {
		p, err := ParseFingerprintPrefix(fp.String())
		require.NoError(t, err)
		assert.True(t, p.Matches(fp))
	})

	t.Run("rejects overlong prefix", func(t *testing.T) {
		_, err := ParseFingerprintPrefix(fp.String() + "00")
		require.Error(t, err)
	})
}

func TestParseDomainName(t *testing.T) {
	cases := []struct {
		in   string
		want DomainName
		ok   bool
	}{
		{"techcorp.com", "techcorp.com", true},
		{"  TechCorp.COM. ", "techcorp.com", true},
		{"https://techcorp.com/about", "techcorp.com", true},
		{"localhost", "", false},
		{"-bad.com", "", false},
		{"bad_label.com", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDomainName(tc.in)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "_arkv."+string(tc.want), got.AttestationName())
		})
	}
}

func TestParseQueryType(t *testing.T) {
	qt, err := ParseQueryType("SHA-ID")
	require.NoError(t, err)
	assert.Equal(t, QueryByFingerprint, qt)

	qt, err = ParseQueryType("fingerprint")
	require.NoError(t, err)
	assert.Equal(t, QueryByFingerprint, qt)

	_, err = ParseQueryType("owner")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

package domain

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	dErrors "arkv/pkg/domain-errors"
)

// FingerprintLength is the hex length of a SHA-256 digest.
const FingerprintLength = 64

// Fingerprint is the lower-case hex SHA-256 digest identifying a notarized artifact.
// Invariant: exactly 64 lower-case hex characters, no 0x prefix.
//
// Construct via ParseFingerprint at trust boundaries or FingerprintFromDigest
// from a computed digest; direct casting bypasses validation.
type Fingerprint string

// FingerprintFromDigest builds a Fingerprint from a raw 32-byte digest.
func FingerprintFromDigest(digest [32]byte) Fingerprint {
	return Fingerprint(hex.EncodeToString(digest[:]))
}

// ParseFingerprint accepts a 64-character hex digest, with or without a 0x
// prefix and in any case, and returns its canonical form.
func ParseFingerprint(s string) (Fingerprint, error) {
	v := normalizeHex(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint is required")
	}
	if len(v) != FingerprintLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be 64 hex characters")
	}
	if !isHex(v) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be hexadecimal")
	}
	return Fingerprint(v), nil
}

func (f Fingerprint) String() string {
	return string(f)
}

// IsNil reports whether the fingerprint is empty.
func (f Fingerprint) IsNil() bool {
	return f == ""
}

// Bytes decodes the digest. It returns nil for a malformed value.
func (f Fingerprint) Bytes() []byte {
	b, err := hex.DecodeString(string(f))
	if err != nil {
		return nil
	}
	return b
}

// Hex returns the 0x-prefixed form used in ledger transaction data.
func (f Fingerprint) Hex() string {
	return hexutil.Encode(f.Bytes())
}

// FingerprintPrefix is a non-empty lower-case hex prefix of a fingerprint.
type FingerprintPrefix string

// ParseFingerprintPrefix accepts 1 to 64 hex characters, optionally 0x-prefixed.
func ParseFingerprintPrefix(s string) (FingerprintPrefix, error) {
	v := normalizeHex(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint prefix is required")
	}
	if len(v) > FingerprintLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint prefix is longer than a fingerprint")
	}
	if !isHex(v) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint prefix must be hexadecimal")
	}
	return FingerprintPrefix(v), nil
}

// Matches reports whether f starts with the prefix.
func (p FingerprintPrefix) Matches(f Fingerprint) bool {
	return strings.HasPrefix(string(f), string(p))
}

func (p FingerprintPrefix) String() string {
	return string(p)
}

func normalizeHex(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(v, "0x")
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

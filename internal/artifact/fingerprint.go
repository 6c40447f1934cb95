package artifact

import (
	"crypto/sha256"
	"io"

	id "arkv/pkg/domain"
)

// Fingerprint digests canonical bytes with SHA-256.
func Fingerprint(encoded []byte) id.Fingerprint {
	return id.FingerprintFromDigest(sha256.Sum256(encoded))
}

// FingerprintRecord encodes r and digests the result.
func FingerprintRecord(r Record) (id.Fingerprint, error) {
	encoded, err := Encode(r)
	if err != nil {
		return "", err
	}
	return Fingerprint(encoded), nil
}

// FingerprintStream digests a file payload read from src followed by the
// canonical metadata, without holding the payload in memory. The result equals
// FingerprintRecord(NewFileRecord(payload, metadata)).
func FingerprintStream(src io.Reader, metadata map[string]string) (id.Fingerprint, int64, error) {
	meta, err := CanonicalJSON(metadata)
	if err != nil {
		return "", 0, err
	}
	h := sha256.New()
	n, err := io.Copy(h, src)
	if err != nil {
		return "", n, &EncodingError{Field: "payload", Reason: "payload cannot be read", Err: err}
	}
	h.Write(meta)
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return id.FingerprintFromDigest(digest), n, nil
}

package attestation

import (
	"time"

	id "arkv/pkg/domain"
)

// RecordPrefix labels a fingerprint inside a TXT value.
const RecordPrefix = "SHA-ID:"

// TXTRecord is one TXT answer. Multi-string records are joined by the resolver.
type TXTRecord struct {
	Data string
}

// Attestation is the outcome of checking a domain for a published fingerprint.
// Verified is true only when a TXT record under _arkv.<domain> contains
// "SHA-ID:<fingerprint>".
type Attestation struct {
	Domain      id.DomainName
	Fingerprint id.Fingerprint
	Verified    bool
	CheckedAt   time.Time
	// MatchedRecord is the TXT value that satisfied the check, if any.
	MatchedRecord string
}

// ExpectedRecord is the TXT value a domain owner publishes for fp.
func ExpectedRecord(fp id.Fingerprint) string {
	return RecordPrefix + fp.String()
}

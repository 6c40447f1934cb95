package notary

import (
	"time"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	"arkv/internal/index"
	id "arkv/pkg/domain"
)

// ProviderState is the outcome of the last capability probe.
type ProviderState struct {
	Available     bool
	SignerAddress string
	// Reason explains why the provider is unavailable.
	Reason       string
	WrongNetwork bool
	CheckedAt    time.Time
}

// FileRequest notarizes a file payload.
type FileRequest struct {
	File     []byte
	Metadata map[string]string
	// Store uploads the payload to content storage before anchoring.
	Store bool
	Fee   anchoring.FeePolicy
}

// BusinessRequest notarizes the declared attributes of a business.
type BusinessRequest struct {
	Fields artifact.BusinessFields
	Fee    anchoring.FeePolicy
}

// Result is the outcome of a notarization workflow.
type Result struct {
	Record      *index.Record
	Status      index.Status
	ExplorerURL string
	// AttestationUnavailable is set when the DNS check could not run. The
	// record is anchored without an attestation and can be rechecked later.
	AttestationUnavailable bool
	StatusMessage          string
	// Steps lists the progress messages of the completed workflow, in order.
	Steps []string
}

func (r *Result) step(msg string) {
	r.Steps = append(r.Steps, msg)
}

// Verification is a record as seen by a verifier.
type Verification struct {
	Record  *index.Record
	Status  index.Status
	Summary string
	// AttestationUnavailable is set on recheck results whose DNS lookup failed.
	AttestationUnavailable bool
}

// Verification summaries.
const (
	SummaryFullyVerified = "Fully Verified"
	SummaryPartial       = "Partial Verification"
)

func newVerification(r *index.Record) Verification {
	status := r.Status()
	summary := SummaryPartial
	if status == index.StatusFullyVerified {
		summary = SummaryFullyVerified
	}
	return Verification{Record: r, Status: status, Summary: summary}
}

// DNSInstructions describes the TXT record a domain owner publishes to
// attest a notarization.
type DNSInstructions struct {
	Domain      id.DomainName
	Fingerprint id.Fingerprint
	Name        string
	Type        string
	Value       string
}

package anchoring

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	id "arkv/pkg/domain"
)

// Status is the lifecycle position of an anchor transaction.
type Status string

const (
	// StatusSubmitting marks a fingerprint claimed by an in-flight Anchor
	// call that has not yet been accepted by the signer. It is never returned
	// from a successful Anchor.
	StatusSubmitting Status = "submitting"
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

// Active reports whether the status blocks a new anchor for the same
// fingerprint.
func (s Status) Active() bool {
	switch s {
	case StatusSubmitting, StatusPending, StatusConfirmed:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Transaction is the ledger commitment of one fingerprint.
type Transaction struct {
	Fingerprint   id.Fingerprint
	TransactionID string
	FeePaid       *big.Int
	SubmittedAt   time.Time
	Status        Status
	ResolvedAt    *time.Time
	Reason        string
}

// Clone returns a deep copy so callers never share state with a store.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.FeePaid != nil {
		c.FeePaid = new(big.Int).Set(t.FeePaid)
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}

// FeePolicy is the value attached to the anchoring clause, in wei.
type FeePolicy struct {
	amount *big.Int
}

// NoFee anchors with a zero-value clause.
func NoFee() FeePolicy {
	return FeePolicy{}
}

// FixedFee anchors with a fixed nominal value.
func FixedFee(wei *big.Int) (FeePolicy, error) {
	if wei == nil {
		return NoFee(), nil
	}
	if wei.Sign() < 0 {
		return FeePolicy{}, fmt.Errorf("fee must not be negative")
	}
	return FeePolicy{amount: new(big.Int).Set(wei)}, nil
}

// ParseFee reads a decimal or 0x-hex wei amount. Empty means no fee.
func ParseFee(s string) (FeePolicy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoFee(), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(strings.ToLower(s))
		if err != nil {
			return FeePolicy{}, fmt.Errorf("invalid fee %q: %w", s, err)
		}
		return FixedFee(v)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return FeePolicy{}, fmt.Errorf("invalid fee %q", s)
	}
	return FixedFee(v)
}

// Amount returns the fee as a fresh value; never nil.
func (p FeePolicy) Amount() *big.Int {
	if p.amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.amount)
}

// IsZero reports whether the fee is zero.
func (p FeePolicy) IsZero() bool {
	return p.amount == nil || p.amount.Sign() == 0
}

// Clause is one ledger call handed to the signer.
type Clause struct {
	To      common.Address
	Value   *big.Int
	Data    []byte
	Comment string
}

// Certificate is a message the signer attests to with its key.
type Certificate struct {
	Purpose string
	Payload CertificatePayload
}

// CertificatePayload is the signed content of a Certificate.
type CertificatePayload struct {
	Type    string
	Content string
}

// IdentificationCertificate is the certificate signed to prove a signer is
// connected and holds its key.
func IdentificationCertificate() Certificate {
	return Certificate{
		Purpose: "identification",
		Payload: CertificatePayload{
			Type:    "text",
			Content: "Sign a certificate to prove your identity.",
		},
	}
}

// Receipt is the ledger's verdict on a submitted transaction.
type Receipt struct {
	Reverted    bool
	BlockID     string
	BlockNumber uint32
	BlockTime   time.Time
}

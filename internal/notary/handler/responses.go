package handler

import (
	"time"

	"arkv/internal/index"
	"arkv/internal/notary"
)

// NotarizationResponse is the wire form of a notarization record.
type NotarizationResponse struct {
	Fingerprint        string               `json:"fingerprint"`
	Kind               string               `json:"kind"`
	Domain             string               `json:"domain,omitempty"`
	EntityName         string               `json:"entityName,omitempty"`
	ContentID          string               `json:"contentId,omitempty"`
	Owner              string               `json:"owner,omitempty"`
	Metadata           map[string]string    `json:"metadata,omitempty"`
	Anchor             *AnchorResponse      `json:"anchor,omitempty"`
	Attestation        *AttestationResponse `json:"attestation,omitempty"`
	VerificationStatus string               `json:"verificationStatus"`
	Summary            string               `json:"summary"`
	CreatedAt          time.Time            `json:"createdAt"`
}

// AnchorResponse describes the ledger transaction of a notarization.
type AnchorResponse struct {
	TransactionID string     `json:"transactionId"`
	Status        string     `json:"status"`
	FeePaid       string     `json:"feePaid"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	ExplorerURL   string     `json:"explorerUrl,omitempty"`
}

// AttestationResponse describes the last DNS check.
type AttestationResponse struct {
	Domain        string    `json:"domain"`
	Verified      bool      `json:"verified"`
	CheckedAt     time.Time `json:"checkedAt"`
	MatchedRecord string    `json:"matchedRecord,omitempty"`
}

// NotarizeResponse is returned by the notarization endpoints.
type NotarizeResponse struct {
	Notarization           NotarizationResponse `json:"notarization"`
	ExplorerURL            string               `json:"explorerUrl,omitempty"`
	AttestationUnavailable bool                 `json:"attestationUnavailable,omitempty"`
	StatusMessage          string               `json:"statusMessage"`
	Steps                  []string             `json:"steps"`
}

// VerifyResponse lists the matches of a verification query.
type VerifyResponse struct {
	Results []NotarizationResponse `json:"results"`
	Count   int                    `json:"count"`
}

// RecheckResponse is one record after re-attestation.
type RecheckResponse struct {
	NotarizationResponse
	AttestationUnavailable bool `json:"attestationUnavailable,omitempty"`
}

// DNSInstructionsResponse tells a domain owner what to publish.
type DNSInstructionsResponse struct {
	Domain      string `json:"domain"`
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       string `json:"value"`
}

// ProviderResponse reports signing provider capability.
type ProviderResponse struct {
	Available     bool      `json:"available"`
	SignerAddress string    `json:"signerAddress,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	StatusMessage string    `json:"statusMessage,omitempty"`
	CheckedAt     time.Time `json:"checkedAt,omitzero"`
}

// AnchorResolutionResponse acknowledges a ledger callback.
type AnchorResolutionResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

func fromRecord(r *index.Record, explorer func(string) string) NotarizationResponse {
	v := notary.Verification{Record: r, Status: r.Status()}
	return fromVerification(v, explorer)
}

func fromVerification(v notary.Verification, explorer func(string) string) NotarizationResponse {
	r := v.Record
	resp := NotarizationResponse{
		Fingerprint:        r.Fingerprint.String(),
		Kind:               string(r.Kind),
		Domain:             r.Domain.String(),
		EntityName:         r.EntityName,
		ContentID:          r.ContentID,
		Owner:              r.Owner,
		Metadata:           r.Metadata,
		VerificationStatus: string(v.Status),
		Summary:            v.Summary,
		CreatedAt:          r.CreatedAt,
	}
	if resp.Summary == "" {
		resp.Summary = notary.SummaryPartial
		if v.Status == index.StatusFullyVerified {
			resp.Summary = notary.SummaryFullyVerified
		}
	}
	if tx := r.Anchor; tx != nil {
		fee := "0"
		if tx.FeePaid != nil {
			fee = tx.FeePaid.String()
		}
		resp.Anchor = &AnchorResponse{
			TransactionID: tx.TransactionID,
			Status:        string(tx.Status),
			FeePaid:       fee,
			SubmittedAt:   tx.SubmittedAt,
			ResolvedAt:    tx.ResolvedAt,
			Reason:        tx.Reason,
			ExplorerURL:   explorer(tx.TransactionID),
		}
	}
	if att := r.Attestation; att != nil {
		resp.Attestation = &AttestationResponse{
			Domain:        att.Domain.String(),
			Verified:      att.Verified,
			CheckedAt:     att.CheckedAt,
			MatchedRecord: att.MatchedRecord,
		}
	}
	return resp
}

func fromResult(res *notary.Result, explorer func(string) string) *NotarizeResponse {
	return &NotarizeResponse{
		Notarization:           fromRecord(res.Record, explorer),
		ExplorerURL:            res.ExplorerURL,
		AttestationUnavailable: res.AttestationUnavailable,
		StatusMessage:          res.StatusMessage,
		Steps:                  res.Steps,
	}
}

func fromProvider(p notary.ProviderState) *ProviderResponse {
	resp := &ProviderResponse{
		Available:     p.Available,
		SignerAddress: p.SignerAddress,
		Reason:        p.Reason,
		CheckedAt:     p.CheckedAt,
	}
	switch {
	case p.WrongNetwork:
		resp.StatusMessage = notary.MsgSwitchNetwork
	case !p.Available:
		resp.StatusMessage = notary.MsgConnectWallet
	}
	return resp
}

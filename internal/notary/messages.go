package notary

import (
	"errors"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	dErrors "arkv/pkg/domain-errors"
)

// Progress and outcome messages shown to the person notarizing.
const (
	StepHashing        = "Generating SHA-256 hash..."
	StepStoring        = "Storing file content..."
	StepCheckingDNS    = "Checking DNS TXT record..."
	StepAwaitingWallet = "Please check your wallet to approve the transaction..."
	StepSending        = "Sending transaction..."

	MsgCompleted     = "Registration completed successfully!"
	MsgConnectWallet = "Please connect wallet first"
	MsgSwitchNetwork = "Switch wallet to TESTNET before sending transactions"
	MsgSelectFile    = "Error: Please select a file first."
	MsgTxFailed      = "Transaction failed: "
)

// StatusMessage turns a workflow outcome into the message shown to the user.
func StatusMessage(err error) string {
	if err == nil {
		return MsgCompleted
	}
	if errors.Is(err, ErrWrongNetwork) {
		return MsgSwitchNetwork
	}
	if errors.Is(err, ErrProviderUnavailable) {
		return MsgConnectWallet
	}
	var encErr *artifact.EncodingError
	if errors.As(err, &encErr) && encErr.Field == "payload" {
		return MsgSelectFile
	}
	var signErr *anchoring.SignerError
	if errors.As(err, &signErr) {
		reason := signErr.Reason
		if reason == "" {
			reason = signErr.Kind.Error()
		}
		return MsgTxFailed + reason
	}
	var conflict *anchoring.ConflictError
	if errors.As(err, &conflict) {
		return MsgTxFailed + conflict.Error()
	}
	msg := dErrors.MessageOf(err)
	if msg == "" || dErrors.CodeOf(err) == dErrors.CodeInternal {
		msg = "request could not be completed"
	}
	return "Error: " + msg
}

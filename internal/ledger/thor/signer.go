package thor

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"arkv/internal/anchoring"
)

const (
	defaultExpiration = 720
	certificateDomain = "arkv"
)

// Node is the part of Client the signer needs.
type Node interface {
	BestBlock(ctx context.Context) (Block, error)
	ChainTag(ctx context.Context) (byte, error)
	SendRaw(ctx context.Context, raw []byte) (string, error)
}

// LocalSigner implements anchoring.Signer with a private key held by the
// server. It refuses to attach more value than its fee cap.
type LocalSigner struct {
	node       Node
	key        *ecdsa.PrivateKey
	address    common.Address
	feeCap     *big.Int
	expiration uint32
	gasCoef    uint8
	logger     *slog.Logger
	now        func() time.Time
}

// SignerOption configures a LocalSigner.
type SignerOption func(*LocalSigner)

// WithFeeCap sets the largest total clause value the signer will approve.
func WithFeeCap(wei *big.Int) SignerOption {
	return func(s *LocalSigner) {
		if wei != nil && wei.Sign() >= 0 {
			s.feeCap = new(big.Int).Set(wei)
		}
	}
}

// WithExpiration sets the transaction lifetime in blocks.
func WithExpiration(blocks uint32) SignerOption {
	return func(s *LocalSigner) {
		if blocks > 0 {
			s.expiration = blocks
		}
	}
}

// WithGasPriceCoef sets the gas price coefficient (0-255).
func WithGasPriceCoef(coef uint8) SignerOption {
	return func(s *LocalSigner) {
		s.gasCoef = coef
	}
}

// WithSignerLogger sets the logger.
func WithSignerLogger(logger *slog.Logger) SignerOption {
	return func(s *LocalSigner) {
		s.logger = logger
	}
}

// WithSignerClock overrides the certificate timestamp source.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *LocalSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLocalSigner loads a hex private key (with or without 0x).
func NewLocalSigner(node Node, hexKey string, opts ...SignerOption) (*LocalSigner, error) {
	if node == nil {
		return nil, fmt.Errorf("thor node is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("load signer key: %w", err)
	}
	s := &LocalSigner{
		node:       node,
		key:        key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		feeCap:     new(big.Int),
		expiration: defaultExpiration,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Address is the signer's account.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTransaction implements anchoring.Signer.
func (s *LocalSigner) SignTransaction(ctx context.Context, clauses []anchoring.Clause) (string, error) {
	if len(clauses) == 0 {
		return "", anchoring.SubmissionFailed("no clauses", nil)
	}

	total := new(big.Int)
	txClauses := make([]Clause, 0, len(clauses))
	for _, c := range clauses {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		total.Add(total, value)
		to := c.To
		txClauses = append(txClauses, Clause{To: &to, Value: value, Data: c.Data})
	}
	if total.Cmp(s.feeCap) > 0 {
		return "", anchoring.Declined(fmt.Sprintf("value %s exceeds signer cap %s", total, s.feeCap))
	}

	chainTag, err := s.node.ChainTag(ctx)
	if err != nil {
		return "", anchoring.SubmissionFailed("read chain tag", err)
	}
	best, err := s.node.BestBlock(ctx)
	if err != nil {
		return "", anchoring.SubmissionFailed("read best block", err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return "", anchoring.SubmissionFailed("generate nonce", err)
	}

	body := &Body{
		ChainTag:     chainTag,
		BlockRef:     best.Ref(),
		Expiration:   s.expiration,
		Clauses:      txClauses,
		GasPriceCoef: s.gasCoef,
		Gas:          IntrinsicGas(txClauses),
		Nonce:        nonce,
	}
	tx, err := body.Sign(s.key)
	if err != nil {
		return "", anchoring.SubmissionFailed("sign", err)
	}

	id, err := s.node.SendRaw(ctx, tx.Raw)
	if err != nil {
		if isInsufficientFunds(err) {
			return "", anchoring.InsufficientFunds("node rejected transaction", err)
		}
		return "", anchoring.SubmissionFailed("send transaction", err)
	}
	if id == "" {
		id = tx.ID.Hex()
	}
	s.logger.DebugContext(ctx, "thor transaction sent",
		"tx_id", id,
		"origin", s.address.Hex(),
		"gas", body.Gas,
	)
	return id, nil
}

// certificate is the signed certificate layout; fields are in key order so
// json.Marshal yields the sorted form.
type certificate struct {
	Domain    string             `json:"domain"`
	Payload   certificatePayload `json:"payload"`
	Purpose   string             `json:"purpose"`
	Signer    string             `json:"signer"`
	Timestamp int64              `json:"timestamp"`
}

type certificatePayload struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// SignCertificate implements anchoring.Signer. The certificate is signed
// over blake2b-256 of its sorted-key JSON encoding.
func (s *LocalSigner) SignCertificate(_ context.Context, cert anchoring.Certificate) (string, error) {
	msg, err := json.Marshal(certificate{
		Domain:    certificateDomain,
		Payload:   certificatePayload{Content: cert.Payload.Content, Type: cert.Payload.Type},
		Purpose:   cert.Purpose,
		Signer:    strings.ToLower(s.address.Hex()),
		Timestamp: s.now().Unix(),
	})
	if err != nil {
		return "", anchoring.SubmissionFailed("encode certificate", err)
	}
	hash := blake2b.Sum256(msg)
	if _, err := crypto.Sign(hash[:], s.key); err != nil {
		return "", anchoring.SubmissionFailed("sign certificate", err)
	}
	return s.address.Hex(), nil
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

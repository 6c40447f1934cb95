package thor

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"
)

// Gas schedule for plain value/data clauses.
const (
	txGas          = 5000
	clauseGas      = 16000
	zeroDataGas    = 4
	nonZeroDataGas = 68
)

// Clause is one call inside a Thor transaction.
type Clause struct {
	To    *common.Address `rlp:"nil"`
	Value *big.Int
	Data  []byte
}

// Body is the unsigned Thor transaction.
type Body struct {
	ChainTag     byte
	BlockRef     uint64
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    *common.Hash `rlp:"nil"`
	Nonce        uint64
	Reserved     []rlp.RawValue
}

// signed mirrors Body with the trailing signature, matching the wire layout.
type signed struct {
	ChainTag     byte
	BlockRef     uint64
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    *common.Hash `rlp:"nil"`
	Nonce        uint64
	Reserved     []rlp.RawValue
	Signature    []byte
}

// IntrinsicGas is the minimum gas for the given clauses.
func IntrinsicGas(clauses []Clause) uint64 {
	gas := uint64(txGas)
	for _, c := range clauses {
		gas += clauseGas
		for _, b := range c.Data {
			if b == 0 {
				gas += zeroDataGas
			} else {
				gas += nonZeroDataGas
			}
		}
	}
	return gas
}

func (b *Body) reserved() []rlp.RawValue {
	if b.Reserved == nil {
		return []rlp.RawValue{}
	}
	return b.Reserved
}

// SigningHash is blake2b-256 over the RLP-encoded body.
func (b *Body) SigningHash() (common.Hash, error) {
	enc, err := rlp.EncodeToBytes(&Body{
		ChainTag:     b.ChainTag,
		BlockRef:     b.BlockRef,
		Expiration:   b.Expiration,
		Clauses:      b.Clauses,
		GasPriceCoef: b.GasPriceCoef,
		Gas:          b.Gas,
		DependsOn:    b.DependsOn,
		Nonce:        b.Nonce,
		Reserved:     b.reserved(),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode tx body: %w", err)
	}
	return common.Hash(blake2b.Sum256(enc)), nil
}

// SignedTx is a signed transaction ready for submission.
type SignedTx struct {
	Raw    []byte
	ID     common.Hash
	Origin common.Address
}

// Sign signs the body with key and returns the raw transaction and its id.
// The id is blake2b-256(signingHash || origin).
func (b *Body) Sign(key *ecdsa.PrivateKey) (*SignedTx, error) {
	hash, err := b.SigningHash()
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	raw, err := rlp.EncodeToBytes(&signed{
		ChainTag:     b.ChainTag,
		BlockRef:     b.BlockRef,
		Expiration:   b.Expiration,
		Clauses:      b.Clauses,
		GasPriceCoef: b.GasPriceCoef,
		Gas:          b.Gas,
		DependsOn:    b.DependsOn,
		Nonce:        b.Nonce,
		Reserved:     b.reserved(),
		Signature:    sig,
	})
	if err != nil {
		return nil, fmt.Errorf("encode signed tx: %w", err)
	}

	origin := crypto.PubkeyToAddress(key.PublicKey)
	id := blake2b.Sum256(append(hash.Bytes(), origin.Bytes()...))
	return &SignedTx{Raw: raw, ID: common.Hash(id), Origin: origin}, nil
}

// RecoverOrigin returns the signer of a raw transaction.
func RecoverOrigin(raw []byte) (common.Address, error) {
	var tx signed
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return common.Address{}, fmt.Errorf("decode tx: %w", err)
	}
	body := Body{
		ChainTag:     tx.ChainTag,
		BlockRef:     tx.BlockRef,
		Expiration:   tx.Expiration,
		Clauses:      tx.Clauses,
		GasPriceCoef: tx.GasPriceCoef,
		Gas:          tx.Gas,
		DependsOn:    tx.DependsOn,
		Nonce:        tx.Nonce,
		Reserved:     tx.Reserved,
	}
	hash, err := body.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash.Bytes(), tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Package thor talks to a VeChain Thor node over its REST API and signs
// anchoring transactions with a locally held key.
package thor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"arkv/internal/anchoring"
)

const (
	// DefaultNodeURL is the public testnet node.
	DefaultNodeURL = "https://testnet.vecha.in"
	// TestnetChainTag is the last byte of the testnet genesis block id.
	TestnetChainTag byte = 0x27

	maxResponseBytes = 1 << 20
)

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("thor node returned %d: %s", e.Status, e.Body)
}

// Block is the subset of a block header the engine uses.
type Block struct {
	ID        common.Hash `json:"id"`
	Number    uint32      `json:"number"`
	Timestamp uint64      `json:"timestamp"`
}

// Ref is the block reference used in transaction bodies: the first eight
// bytes of the block id.
func (b Block) Ref() uint64 {
	var ref uint64
	for _, v := range b.ID[:8] {
		ref = ref<<8 | uint64(v)
	}
	return ref
}

// Account is an account's VET balance and VTHO energy, in wei.
type Account struct {
	Balance *big.Int
	Energy  *big.Int
}

// Client is a minimal Thor REST client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client. A nil httpClient gets a 10s timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultNodeURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// BestBlock returns the head of the chain.
func (c *Client) BestBlock(ctx context.Context) (Block, error) {
	var b Block
	if err := c.do(ctx, http.MethodGet, "/blocks/best", nil, &b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// ChainTag returns the last byte of the genesis block id.
func (c *Client) ChainTag(ctx context.Context) (byte, error) {
	var genesis Block
	if err := c.do(ctx, http.MethodGet, "/blocks/0", nil, &genesis); err != nil {
		return 0, err
	}
	return genesis.ID[len(genesis.ID)-1], nil
}

// SendRaw submits a signed transaction and returns its id as reported by
// the node.
func (c *Client) SendRaw(ctx context.Context, raw []byte) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"raw": hexutil.Encode(raw)}
	if err := c.do(ctx, http.MethodPost, "/transactions", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

type receiptResponse struct {
	Reverted bool `json:"reverted"`
	Meta     struct {
		BlockID        string `json:"blockID"`
		BlockNumber    uint32 `json:"blockNumber"`
		BlockTimestamp int64  `json:"blockTimestamp"`
	} `json:"meta"`
}

// Receipt implements anchoring.ReceiptSource. The node answers null for a
// transaction that is not yet in a block.
func (c *Client) Receipt(ctx context.Context, txID string) (*anchoring.Receipt, error) {
	var out *receiptResponse
	if err := c.do(ctx, http.MethodGet, "/transactions/"+txID+"/receipt", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &anchoring.Receipt{
		Reverted:    out.Reverted,
		BlockID:     out.Meta.BlockID,
		BlockNumber: out.Meta.BlockNumber,
		BlockTime:   time.Unix(out.Meta.BlockTimestamp, 0).UTC(),
	}, nil
}

// Account returns the balance and energy of addr.
func (c *Client) Account(ctx context.Context, addr common.Address) (Account, error) {
	var out struct {
		Balance string `json:"balance"`
		Energy  string `json:"energy"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts/"+addr.Hex(), nil, &out); err != nil {
		return Account{}, err
	}
	balance, err := hexutil.DecodeBig(out.Balance)
	if err != nil {
		return Account{}, fmt.Errorf("decode balance: %w", err)
	}
	energy, err := hexutil.DecodeBig(out.Energy)
	if err != nil {
		return Account{}, fmt.Errorf("decode energy: %w", err)
	}
	return Account{Balance: balance, Energy: energy}, nil
}

// isInsufficientFunds reports whether err is the node rejecting a transaction
// for lack of VET or VTHO.
func isInsufficientFunds(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "insufficient energy") || strings.Contains(body, "insufficient balance")
}

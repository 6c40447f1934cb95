package thor

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arkv/internal/anchoring"
)

const genesisID = "0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127"

// fakeNode serves the handful of Thor endpoints the engine uses.
type fakeNode struct {
	sendStatus int
	sendBody   string
	receipts   map[string]string
	raw        string
}

func (f *fakeNode) server(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/blocks/best", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"number":100,"id":"0x00000064a1b2c3d4000000000000000000000000000000000000000000000000","timestamp":1700000000}`))
	})
	r.Get("/blocks/0", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"number":0,"id":"` + genesisID + `"}`))
	})
	r.Post("/transactions", func(w http.ResponseWriter, req *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		f.raw = in["raw"]
		if f.sendStatus != 0 {
			w.WriteHeader(f.sendStatus)
			_, _ = w.Write([]byte(f.sendBody))
			return
		}
		_, _ = w.Write([]byte(`{"id":"0xfeed"}`))
	})
	r.Get("/transactions/{id}/receipt", func(w http.ResponseWriter, req *http.Request) {
		body, ok := f.receipts[chi.URLParam(req, "id")]
		if !ok {
			body = "null"
		}
		_, _ = w.Write([]byte(body))
	})
	r.Get("/accounts/{addr}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"balance":"0x3e8","energy":"0x0","hasCode":false}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	node := &fakeNode{receipts: map[string]string{
		"0xok":       `{"reverted":false,"meta":{"blockID":"0xb1","blockNumber":101,"blockTimestamp":1700000010}}`,
		"0xreverted": `{"reverted":true,"meta":{"blockID":"0xb2","blockNumber":102,"blockTimestamp":1700000020}}`,
	}}
	client := NewClient(node.server(t).URL, nil)
	ctx := context.Background()

	t.Run("chain tag is the last genesis byte", func(t *testing.T) {
		tag, err := client.ChainTag(ctx)
		require.NoError(t, err)
		assert.Equal(t, TestnetChainTag, tag)
	})

	t.Run("best block", func(t *testing.T) {
		b, err := client.BestBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(100), b.Number)
		assert.Equal(t, uint64(0x00000064a1b2c3d4), b.Ref())
	})

	t.Run("receipts", func(t *testing.T) {
		r, err := client.Receipt(ctx, "0xpending")
		require.NoError(t, err)
		assert.Nil(t, r)

		r, err = client.Receipt(ctx, "0xok")
		require.NoError(t, err)
		assert.False(t, r.Reverted)
		assert.Equal(t, uint32(101), r.BlockNumber)
		assert.Equal(t, time.Unix(1700000010, 0).UTC(), r.BlockTime)

		r, err = client.Receipt(ctx, "0xreverted")
		require.NoError(t, err)
		assert.True(t, r.Reverted)
	})

	t.Run("account", func(t *testing.T) {
		acct, err := client.Account(ctx, common.Address{})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), acct.Balance.Int64())
		assert.Equal(t, int64(0), acct.Energy.Int64())
	})
}

func TestLocalSigner(t *testing.T) {
	ctx := context.Background()
	clause := anchoring.Clause{
		Value: big.NewInt(0),
		Data:  common.FromHex("0x69c698c5b973e0f46e4c79a0e98184779ee00d503e19cab55c40b25ca9af399f"),
	}

	t.Run("signs and submits a recoverable transaction", func(t *testing.T) {
		node := &fakeNode{}
		signer, err := NewLocalSigner(NewClient(node.server(t).URL, nil), testKey)
		require.NoError(t, err)

		id, err := signer.SignTransaction(ctx, []anchoring.Clause{clause})
		require.NoError(t, err)
		assert.Equal(t, "0xfeed", id)

		origin, err := RecoverOrigin(common.FromHex(node.raw))
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), origin)
	})

	t.Run("value above the cap is declined without contacting the node", func(t *testing.T) {
		node := &fakeNode{}
		signer, err := NewLocalSigner(NewClient(node.server(t).URL, nil), testKey, WithFeeCap(big.NewInt(10)))
		require.NoError(t, err)

		_, err = signer.SignTransaction(ctx, []anchoring.Clause{{Value: big.NewInt(11)}})
		assert.ErrorIs(t, err, anchoring.ErrUserDeclined)
		assert.Empty(t, node.raw)
	})

	t.Run("insufficient energy maps to InsufficientFunds", func(t *testing.T) {
		node := &fakeNode{sendStatus: http.StatusBadRequest, sendBody: "bad tx: insufficient energy"}
		signer, err := NewLocalSigner(NewClient(node.server(t).URL, nil), testKey)
		require.NoError(t, err)

		_, err = signer.SignTransaction(ctx, []anchoring.Clause{clause})
		assert.ErrorIs(t, err, anchoring.ErrInsufficientFunds)
	})

	t.Run("other node errors map to SubmissionFailed", func(t *testing.T) {
		node := &fakeNode{sendStatus: http.StatusInternalServerError, sendBody: "boom"}
		signer, err := NewLocalSigner(NewClient(node.server(t).URL, nil), testKey)
		require.NoError(t, err)

		_, err = signer.SignTransaction(ctx, []anchoring.Clause{clause})
		assert.ErrorIs(t, err, anchoring.ErrSubmissionFailed)
	})

	t.Run("certificate returns the signer address", func(t *testing.T) {
		signer, err := NewLocalSigner(NewClient("http://unused", nil), testKey)
		require.NoError(t, err)

		addr, err := signer.SignCertificate(ctx, anchoring.IdentificationCertificate())
		require.NoError(t, err)
		assert.Equal(t, signer.Address().Hex(), addr)
	})

	t.Run("bad key", func(t *testing.T) {
		_, err := NewLocalSigner(NewClient("", nil), "nothex")
		assert.Error(t, err)
	})
}

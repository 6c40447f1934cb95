package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"arkv/internal/artifact"
	"arkv/internal/attestation"
	attestationmocks "arkv/internal/attestation/mocks"
	"arkv/pkg/platform/httputil"
	"arkv/pkg/platform/middleware/ledgerauth"
)

const fingerprint = "a3f1c2d4e5b6a7980112233445566778899aabbccddeeff00112233445566778"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-1.0.0"
	defer func() { version = original }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "arkvctl version test-1.0.0")
}

func TestFingerprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minutes.txt")
	content := []byte("board minutes 2024-03-01")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	out, err := execute(t, "fingerprint", "file", path, "--meta", "title=Minutes", "-m", "author= Jane ")
	require.NoError(t, err)

	want, err := artifact.FingerprintRecord(artifact.NewFileRecord(content, map[string]string{
		"title":  "Minutes",
		"author": "Jane",
	}))
	require.NoError(t, err)
	assert.Equal(t, want.String(), strings.TrimSpace(out))
}

func TestFingerprintFile_Errors(t *testing.T) {
	_, err := execute(t, "fingerprint", "file", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = execute(t, "fingerprint", "file", empty)
	assert.ErrorContains(t, err, "empty")
}

func TestParseMetadata(t *testing.T) {
	got, err := parseMetadata([]string{"title=Q1 report", "tag=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Q1 report", "tag": "a=b"}, got)

	_, err = parseMetadata([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseMetadata([]string{"=x"})
	assert.Error(t, err)
}

func TestFingerprintBusiness(t *testing.T) {
	out, err := execute(t, "fingerprint", "business",
		"--entity", "TechCorp LLC",
		"--domain", "techcorp.com",
		"--country", "US",
		"--legal-type", "LLC",
		"--category", "Technology",
	)
	require.NoError(t, err)

	want, err := artifact.FingerprintRecord(artifact.NewBusinessRecord(artifact.BusinessFields{
		EntityName: "TechCorp LLC",
		Domain:     "techcorp.com",
		Country:    "US",
		LegalType:  "LLC",
		Category:   "Technology",
	}))
	require.NoError(t, err)
	assert.Equal(t, want.String(), strings.TrimSpace(out))
}

func TestAttestCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	res := attestationmocks.NewMockResolver(ctrl)
	original := newResolver
	newResolver = func() attestation.Resolver { return res }
	defer func() { newResolver = original }()

	t.Run("published record verifies", func(t *testing.T) {
		res.EXPECT().ResolveTXT(gomock.Any(), "_arkv.techcorp.com").
			Return([]attestation.TXTRecord{{Data: "SHA-ID:" + fingerprint}}, nil)

		out, err := execute(t, "attest", "check", "techcorp.com", fingerprint, "--retries", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "verified: _arkv.techcorp.com publishes SHA-ID:"+fingerprint)
	})

	t.Run("missing record does not verify", func(t *testing.T) {
		res.EXPECT().ResolveTXT(gomock.Any(), gomock.Any()).Return(nil, attestation.ErrNameNotFound)

		out, err := execute(t, "attest", "check", "techcorp.com", fingerprint, "--retries", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "not verified")
	})

	t.Run("resolver fault is reported", func(t *testing.T) {
		res.EXPECT().ResolveTXT(gomock.Any(), gomock.Any()).Return(nil, errors.New("SERVFAIL"))

		out, err := execute(t, "attest", "check", "techcorp.com", fingerprint, "--retries", "0")
		require.Error(t, err)
		assert.ErrorIs(t, err, attestation.ErrUnavailable)
		assert.Contains(t, out, "attestation unavailable")
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := execute(t, "attest", "check", "not a domain", fingerprint)
		assert.Error(t, err)
	})
}

func TestAttestInstructions(t *testing.T) {
	out, err := execute(t, "attest", "instructions", "TechCorp.com", fingerprint)
	require.NoError(t, err)
	assert.Contains(t, out, "Name:  _arkv.techcorp.com")
	assert.Contains(t, out, "Type:  TXT")
	assert.Contains(t, out, "Value: SHA-ID:"+fingerprint)
}

func TestVerify(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Query().Get("q") == "bad" {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_input",
				"error_description": "fingerprint prefix must be at least 8 hex characters",
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"count": 1,
			"results": []map[string]any{{
				"fingerprint":        fingerprint,
				"kind":               "business",
				"domain":             "techcorp.com",
				"entityName":         "TechCorp LLC",
				"verificationStatus": "FullyVerified",
				"summary":            "Fully Verified",
				"anchor": map[string]any{
					"transactionId": "0xabc",
					"status":        "confirmed",
					"explorerUrl":   "https://explore-testnet.vechain.org/transactions/0xabc",
				},
			}},
		})
	}))
	defer srv.Close()

	t.Run("table output", func(t *testing.T) {
		out, err := execute(t, "verify", "techcorp", "--type", "domain", "--server", srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "q=techcorp&type=domain", gotQuery)
		assert.Contains(t, out, fingerprint+"  Fully Verified")
		assert.Contains(t, out, "Entity: TechCorp LLC (techcorp.com)")
		assert.Contains(t, out, "Anchor: 0xabc [confirmed]")
	})

	t.Run("server error", func(t *testing.T) {
		_, err := execute(t, "verify", "bad", "--type", "sha-id", "--server", srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_input")
	})

	t.Run("unknown query type", func(t *testing.T) {
		_, err := execute(t, "verify", "x", "--type", "owner", "--server", srv.URL)
		assert.Error(t, err)
	})
}

func TestToken(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--subject", "watcher-1")
	require.NoError(t, err)

	svc, err := ledgerauth.New("s3cret", "arkv-ledger")
	require.NoError(t, err)
	claims, err := svc.Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "watcher-1", claims.Subject)
}

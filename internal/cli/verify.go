package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	notaryhandler "arkv/internal/notary/handler"
	id "arkv/pkg/domain"
)

var (
	serverURL  string
	verifyType string
	verifyJSON bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [query]",
	Short: "Look up notarizations on an arkv server",
	Long: `Queries the server's verification index by fingerprint (or a prefix of
at least 8 hex characters), by domain, or by entity name.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "arkv server base URL")
	verifyCmd.Flags().StringVarP(&verifyType, "type", "t", string(id.QueryByFingerprint), "query type: sha-id, domain or entity")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(verifyCmd)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	qt, err := id.ParseQueryType(verifyType)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := fetchVerifications(ctx, serverURL, qt, args[0])
	if err != nil {
		return err
	}

	if verifyJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	return outputVerifyTable(cmd, resp)
}

func fetchVerifications(ctx context.Context, base string, qt id.QueryType, q string) (*notaryhandler.VerifyResponse, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/v1/verifications")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	params := url.Values{}
	params.Set("type", string(qt))
	params.Set("q", q)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query server: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s: %s", res.StatusCode, e.Error, e.ErrorDescription)
		}
		return nil, fmt.Errorf("server returned %d", res.StatusCode)
	}

	var out notaryhandler.VerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func outputVerifyTable(cmd *cobra.Command, resp *notaryhandler.VerifyResponse) error {
	if resp.Count == 0 {
		cmd.Println("No notarizations found.")
		return nil
	}
	for i, r := range resp.Results {
		cmd.Printf("  [%d] %s  %s\n", i+1, r.Fingerprint, r.Summary)
		cmd.Printf("      Kind: %s  Status: %s\n", r.Kind, r.VerificationStatus)
		if r.EntityName != "" || r.Domain != "" {
			cmd.Printf("      Entity: %s (%s)\n", r.EntityName, r.Domain)
		}
		if r.Anchor != nil {
			cmd.Printf("      Anchor: %s [%s]\n", r.Anchor.TransactionID, r.Anchor.Status)
			if r.Anchor.ExplorerURL != "" {
				cmd.Printf("      %s\n", r.Anchor.ExplorerURL)
			}
		}
		cmd.Println()
	}
	return nil
}

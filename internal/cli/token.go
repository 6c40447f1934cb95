package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"arkv/pkg/platform/middleware/ledgerauth"
)

var (
	tokenSecret  string
	tokenIssuer  string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the anchor confirmation callback",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenSecret, "secret", "", "shared callback secret (LEDGER_CALLBACK_SECRET)")
	f.StringVar(&tokenIssuer, "issuer", "arkv-ledger", "token issuer")
	f.StringVar(&tokenSubject, "subject", "ledger-watcher", "caller identity recorded in audit events")
	f.DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenSecret == "" {
		return errors.New("--secret is required")
	}
	svc, err := ledgerauth.New(tokenSecret, tokenIssuer)
	if err != nil {
		return err
	}
	token, err := svc.Issue(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}

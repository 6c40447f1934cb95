package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"arkv/internal/attestation"
	"arkv/internal/attestation/resolver"
	id "arkv/pkg/domain"
)

var (
	attestDoH        string
	attestNameserver string
	attestRetries    int
	attestTimeout    time.Duration
)

// newResolver is replaced in tests.
var newResolver = func() attestation.Resolver {
	if attestNameserver != "" {
		return resolver.NewSystem(attestNameserver)
	}
	return resolver.NewDoH(attestDoH, nil)
}

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Work with DNS domain attestations",
}

var attestCheckCmd = &cobra.Command{
	Use:   "check [domain] [fingerprint]",
	Short: "Check whether a domain publishes a fingerprint",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttestCheck,
}

var attestInstructionsCmd = &cobra.Command{
	Use:   "instructions [domain] [fingerprint]",
	Short: "Print the TXT record a domain owner must publish",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttestInstructions,
}

func init() {
	f := attestCheckCmd.Flags()
	f.StringVar(&attestDoH, "doh", "https://dns.google/resolve", "DNS-over-HTTPS JSON endpoint")
	f.StringVar(&attestNameserver, "nameserver", "", "query this host:port over plain DNS instead of DoH")
	f.IntVar(&attestRetries, "retries", 2, "retries after a failed lookup")
	f.DurationVar(&attestTimeout, "timeout", 10*time.Second, "overall check timeout")

	attestCmd.AddCommand(attestCheckCmd)
	attestCmd.AddCommand(attestInstructionsCmd)
	rootCmd.AddCommand(attestCmd)
}

func parseTarget(domain, fingerprint string) (id.DomainName, id.Fingerprint, error) {
	name, err := id.ParseDomainName(domain)
	if err != nil {
		return "", "", err
	}
	fp, err := id.ParseFingerprint(fingerprint)
	if err != nil {
		return "", "", err
	}
	return name, fp, nil
}

func runAttestCheck(cmd *cobra.Command, args []string) error {
	name, fp, err := parseTarget(args[0], args[1])
	if err != nil {
		return err
	}

	checker, err := attestation.New(newResolver(),
		attestation.WithRetries(attestRetries),
		attestation.WithTotalTimeout(attestTimeout),
	)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	att, err := checker.Check(ctx, name, fp)
	if err != nil {
		if errors.Is(err, attestation.ErrUnavailable) {
			cmd.Printf("%s: attestation unavailable: %v\n", name.AttestationName(), err)
		}
		return err
	}

	if att.Verified {
		cmd.Printf("verified: %s publishes %s\n", name.AttestationName(), att.MatchedRecord)
		return nil
	}
	cmd.Printf("not verified: no TXT record under %s contains %s\n", name.AttestationName(), attestation.ExpectedRecord(fp))
	return nil
}

func runAttestInstructions(cmd *cobra.Command, args []string) error {
	name, fp, err := parseTarget(args[0], args[1])
	if err != nil {
		return err
	}
	cmd.Printf("Name:  %s\n", name.AttestationName())
	cmd.Printf("Type:  TXT\n")
	cmd.Printf("Value: %s\n", attestation.ExpectedRecord(fp))
	return nil
}

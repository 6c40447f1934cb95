package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arkv/internal/artifact"
)

var (
	fileMetadata []string

	businessFields artifact.BusinessFields
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Compute notarization fingerprints locally",
}

var fingerprintFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Fingerprint a file and its metadata",
	Long: `Streams the file through SHA-256 followed by the canonical metadata.
The result equals the fingerprint the server assigns to the same upload.`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprintFile,
}

var fingerprintBusinessCmd = &cobra.Command{
	Use:   "business",
	Short: "Fingerprint a business's declared attributes",
	Args:  cobra.NoArgs,
	RunE:  runFingerprintBusiness,
}

func init() {
	fingerprintFileCmd.Flags().StringArrayVarP(&fileMetadata, "meta", "m", nil, "metadata entry as key=value (repeatable)")

	f := fingerprintBusinessCmd.Flags()
	f.StringVar(&businessFields.EntityName, "entity", "", "legal entity name")
	f.StringVar(&businessFields.Domain, "domain", "", "domain the business controls")
	f.StringVar(&businessFields.Country, "country", "", "country of registration")
	f.StringVar(&businessFields.LegalType, "legal-type", "", "legal form, e.g. LLC")
	f.StringVar(&businessFields.Category, "category", "", "business category")

	fingerprintCmd.AddCommand(fingerprintFileCmd)
	fingerprintCmd.AddCommand(fingerprintBusinessCmd)
	rootCmd.AddCommand(fingerprintCmd)
}

func runFingerprintFile(cmd *cobra.Command, args []string) error {
	metadata, err := parseMetadata(fileMetadata)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	fp, n, err := artifact.FingerprintStream(f, metadata)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s is empty", args[0])
	}
	cmd.Println(fp.String())
	return nil
}

func runFingerprintBusiness(cmd *cobra.Command, _ []string) error {
	fp, err := artifact.FingerprintRecord(artifact.NewBusinessRecord(businessFields))
	if err != nil {
		return err
	}
	cmd.Println(fp.String())
	return nil
}

func parseMetadata(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("metadata %q must be key=value", e)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

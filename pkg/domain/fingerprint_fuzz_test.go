//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseFingerprint tests that parsing never panics on arbitrary input
// and that accepted values are canonical and round-trip.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParseFingerprint(f *testing.F) {
	f.Add("")
	f.Add("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	f.Add("0x2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824")
	f.Add("SHA-ID:2cf24dba")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		fp, err := ParseFingerprint(input)
		if err != nil {
			return
		}
		if len(fp) != FingerprintLength {
			t.Errorf("accepted fingerprint of length %d", len(fp))
		}
		again, err := ParseFingerprint(fp.Hex())
		if err != nil || again != fp {
			t.Errorf("fingerprint failed round-trip through hex form: %v", err)
		}
	})
}

// FuzzParseDomainName checks that accepted domains are stable under re-parsing.
func FuzzParseDomainName(f *testing.F) {
	f.Add("techcorp.com")
	f.Add("HTTPS://Example.org/path")
	f.Add("a..b")

	f.Fuzz(func(t *testing.T, input string) {
		d, err := ParseDomainName(input)
		if err != nil {
			return
		}
		again, err := ParseDomainName(d.String())
		if err != nil || again != d {
			t.Errorf("domain %q not stable under re-parse", d)
		}
	})
}

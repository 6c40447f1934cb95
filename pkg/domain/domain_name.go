package domain

import (
	"strings"

	dErrors "arkv/pkg/domain-errors"
)

// AttestationLabel is the DNS label under which a domain publishes fingerprints.
const AttestationLabel = "_arkv"

const (
	maxDomainLength = 253
	maxLabelLength  = 63
)

// DomainName is a normalised DNS name: lower-case, no scheme, no trailing dot.
// Invariant: at least two labels of letters, digits and inner hyphens.
type DomainName string

// ParseDomainName validates a claimed domain. Scheme prefixes, paths and a
// trailing dot are tolerated and stripped.
func ParseDomainName(s string) (DomainName, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	if i := strings.IndexAny(v, "/?#"); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSuffix(v, ".")
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}
	if len(v) > maxDomainLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "domain is too long")
	}
	labels := strings.Split(v, ".")
	if len(labels) < 2 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "domain must have at least two labels")
	}
	for _, label := range labels {
		if !validLabel(label) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "domain contains an invalid label")
		}
	}
	return DomainName(v), nil
}

func (d DomainName) String() string {
	return string(d)
}

// AttestationName is the TXT record name checked for this domain.
func (d DomainName) AttestationName() string {
	return AttestationLabel + "." + string(d)
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

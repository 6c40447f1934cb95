// Package resolver provides TXT lookup adapters for attestation checks.
package resolver

import (
	"context"
	"errors"
	"net"
	"strings"

	"arkv/internal/attestation"
)

// System resolves TXT records through the host resolver, or through a fixed
// nameserver when one is configured.
type System struct {
	resolver *net.Resolver
}

// NewSystem returns a System resolver. An empty nameserver uses the host
// configuration; otherwise queries go to nameserver ("host:port").
func NewSystem(nameserver string) *System {
	r := &net.Resolver{PreferGo: true}
	if nameserver != "" {
		dialer := &net.Dialer{}
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, nameserver)
		}
	}
	return &System{resolver: r}
}

// ResolveTXT implements attestation.Resolver.
func (s *System) ResolveTXT(ctx context.Context, name string) ([]attestation.TXTRecord, error) {
	values, err := s.resolver.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, attestation.ErrNameNotFound
		}
		return nil, err
	}
	records := make([]attestation.TXTRecord, 0, len(values))
	for _, v := range values {
		records = append(records, attestation.TXTRecord{Data: v})
	}
	return records, nil
}

// joinStrings merges the character-strings of one TXT record and drops the
// surrounding quotes some resolvers leave in place.
func joinStrings(data string) string {
	if !strings.Contains(data, "\"") {
		return data
	}
	var b strings.Builder
	for _, part := range strings.Split(data, "\" \"") {
		b.WriteString(strings.Trim(part, "\""))
	}
	return b.String()
}

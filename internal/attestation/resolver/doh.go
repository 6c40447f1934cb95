package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"arkv/internal/attestation"
)

const (
	// DefaultDoHEndpoint is Google's JSON DNS-over-HTTPS API.
	DefaultDoHEndpoint = "https://dns.google/resolve"

	dnsTypeTXT    = 16
	rcodeNXDomain = 3
)

// DoH resolves TXT records through a JSON DNS-over-HTTPS endpoint.
type DoH struct {
	endpoint string
	client   *http.Client
}

// NewDoH creates a DoH resolver. A nil client gets a 5s timeout client.
func NewDoH(endpoint string, client *http.Client) *DoH {
	if endpoint == "" {
		endpoint = DefaultDoHEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &DoH{endpoint: endpoint, client: client}
}

type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// ResolveTXT implements attestation.Resolver.
func (d *DoH) ResolveTXT(ctx context.Context, name string) ([]attestation.TXTRecord, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("type", "TXT")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build doh request: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh endpoint returned %d", resp.StatusCode)
	}

	var body dohResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode doh response: %w", err)
	}

	switch body.Status {
	case 0:
	case rcodeNXDomain:
		return nil, attestation.ErrNameNotFound
	default:
		return nil, fmt.Errorf("doh rcode %d for %s", body.Status, name)
	}

	var records []attestation.TXTRecord
	for _, ans := range body.Answer {
		if ans.Type != dnsTypeTXT {
			continue
		}
		records = append(records, attestation.TXTRecord{Data: joinStrings(ans.Data)})
	}
	return records, nil
}

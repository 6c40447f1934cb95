// Package storage keeps notarized file content addressable by CID.
package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Store persists content and returns its content id.
type Store interface {
	Put(ctx context.Context, data []byte, metadata map[string]string) (string, error)
	Get(ctx context.Context, contentID string) ([]byte, error)
}

// ContentID returns the CIDv1 (raw codec, sha2-256) for data. This is the id
// an IPFS node assigns to a single-block file added with raw leaves.
func ContentID(data []byte) (cid.Cid, error) {
	prefix := cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}
	c, err := prefix.Sum(data)
	if err != nil {
		return cid.Undef, fmt.Errorf("compute content id: %w", err)
	}
	return c, nil
}

// ParseContentID validates a textual CID.
func ParseContentID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("parse content id %q: %w", s, err)
	}
	return c, nil
}

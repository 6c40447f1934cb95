package domain

import (
	"strings"

	dErrors "arkv/pkg/domain-errors"
)

// QueryType selects which index lookup a verification runs.
// Invariant: the value must be one of the supported query types.
type QueryType string

const (
	QueryByFingerprint QueryType = "sha-id"
	QueryByDomain      QueryType = "domain"
	QueryByEntity      QueryType = "entity"
)

var validQueryTypes = map[QueryType]bool{
	QueryByFingerprint: true,
	QueryByDomain:      true,
	QueryByEntity:      true,
}

// ParseQueryType constructs a QueryType from external input.
// "fingerprint" is accepted as an alias of "sha-id".
func ParseQueryType(s string) (QueryType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "query type is required")
	}
	if v == "fingerprint" {
		return QueryByFingerprint, nil
	}
	qt := QueryType(v)
	if !validQueryTypes[qt] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "query type must be one of sha-id, domain, entity")
	}
	return qt, nil
}

func (q QueryType) String() string {
	return string(q)
}

package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	"arkv/internal/notary"
	dErrors "arkv/pkg/domain-errors"
)

const (
	maxUploadBytes   = 32 << 20
	maxMemoryBytes   = 8 << 20 // larger file parts spill to temp files
	maxMetadataKeys  = 32
	maxFieldLength   = 256
	maxMetadataValue = 4096
)

// BusinessRequest is the HTTP request body for POST /v1/notarizations/businesses.
type BusinessRequest struct {
	EntityName string `json:"entityName"`
	Domain     string `json:"domain"`
	Country    string `json:"country"`
	LegalType  string `json:"legalType"`
	Category   string `json:"category"`
	Fee        string `json:"fee,omitempty"`

	// Parsed values (populated by Validate)
	parsedFee anchoring.FeePolicy
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *BusinessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"entityName", &r.EntityName},
		{"domain", &r.Domain},
		{"country", &r.Country},
		{"legalType", &r.LegalType},
		{"category", &r.Category},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if len(*f.value) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, f.name+" is too long")
		}
		if *f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.name+" is required")
		}
	}

	fee, err := anchoring.ParseFee(r.Fee)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "fee must be a non-negative amount in wei")
	}
	r.parsedFee = fee
	return nil
}

// ToService builds the notary request.
func (r *BusinessRequest) ToService() notary.BusinessRequest {
	return notary.BusinessRequest{
		Fields: artifact.BusinessFields{
			EntityName: r.EntityName,
			Domain:     r.Domain,
			Country:    r.Country,
			LegalType:  r.LegalType,
			Category:   r.Category,
		},
		Fee: r.parsedFee,
	}
}

// FailRequest is the body of POST /v1/anchors/{txid}/fail.
type FailRequest struct {
	Reason string `json:"reason"`
}

// Validate trims and bounds the reason.
func (r *FailRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(r.Reason) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "reason is too long")
	}
	return nil
}

// parseFileForm reads a multipart upload: the payload in "file", metadata in
// "metadata[<key>]" fields, and the optional "store" and "fee" fields. A
// missing file part leaves File nil so the workflow reports it.
func parseFileForm(w http.ResponseWriter, r *http.Request) (notary.FileRequest, error) {
	var req notary.FileRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, dErrors.New(dErrors.CodeBadRequest, "file is too large")
		}
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	metadata := make(map[string]string)
	for key, values := range r.MultipartForm.Value {
		name, ok := metadataKey(key)
		if !ok || len(values) == 0 {
			continue
		}
		value := strings.TrimSpace(values[0])
		if len(value) > maxMetadataValue {
			return req, dErrors.New(dErrors.CodeValidation, "metadata value is too long: "+name)
		}
		metadata[name] = value
	}
	if len(metadata) > maxMetadataKeys {
		return req, dErrors.New(dErrors.CodeValidation, "too many metadata fields")
	}
	req.Metadata = metadata

	if raw := r.FormValue("store"); raw != "" {
		store, err := strconv.ParseBool(raw)
		if err != nil {
			return req, dErrors.New(dErrors.CodeValidation, "store must be true or false")
		}
		req.Store = store
	}
	fee, err := anchoring.ParseFee(r.FormValue("fee"))
	if err != nil {
		return req, dErrors.Wrap(err, dErrors.CodeValidation, "fee must be a non-negative amount in wei")
	}
	req.Fee = fee

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid file part")
	}
	defer file.Close()
	data, err := readFile(file)
	if err != nil {
		return req, dErrors.Wrap(err, dErrors.CodeBadRequest, "file cannot be read")
	}
	req.File = data
	return req, nil
}

func readFile(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func metadataKey(field string) (string, bool) {
	inner, ok := strings.CutPrefix(field, "metadata[")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(inner, "]")
	if !ok || name == "" || len(name) > maxFieldLength {
		return "", false
	}
	return name, true
}

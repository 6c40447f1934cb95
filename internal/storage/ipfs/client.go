// Package ipfs stores content through an IPFS node's HTTP RPC API.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"arkv/internal/storage"
)

// DefaultAPIURL is the RPC endpoint of a local Kubo node.
const DefaultAPIURL = "http://127.0.0.1:5001"

const maxResponseBytes = 64 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the RPC API at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put adds and pins data as a CIDv1 raw-leaves file. metadata["title"], when
// present, names the file on the node.
func (c *Client) Put(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	name := metadata["title"]
	if name == "" {
		name = "artifact"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build ipfs upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build ipfs upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build ipfs upload: %w", err)
	}

	q := url.Values{}
	q.Set("cid-version", "1")
	q.Set("raw-leaves", "true")
	q.Set("pin", "true")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/add?"+q.Encode(), &body)
	if err != nil {
		return "", fmt.Errorf("build ipfs request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out addResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decode add response: %v", storage.ErrUnavailable, err)
	}
	if _, err := storage.ParseContentID(out.Hash); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return out.Hash, nil
}

// Get fetches content by CID.
func (c *Client) Get(ctx context.Context, contentID string) ([]byte, error) {
	if _, err := storage.ParseContentID(contentID); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("arg", contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/cat?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build ipfs request: %w", err)
	}
	return c.do(req)
}

type rpcError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", storage.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		var rpcErr rpcError
		_ = json.Unmarshal(body, &rpcErr)
		if strings.Contains(rpcErr.Message, "not found") {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: ipfs %s returned %d: %s",
			storage.ErrUnavailable, req.URL.Path, resp.StatusCode, rpcErr.Message)
	}
	return body, nil
}

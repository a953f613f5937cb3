package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/designtech/dtchain/internal/codec"
)

// maxResponseBytes bounds how much of a response body the client reads.
const maxResponseBytes = 64 << 20

const mimeCBOR = "application/cbor"

// Document is a chain document as exchanged with dtchaind.
type Document = codec.Document

// BuildResult is returned by BuildChain and ExtendChain.
type BuildResult struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
	Root  string `json:"root"`
	Document
}

// VerifyResult reports whether a submitted chain holds.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Records int    `json:"records"`
	Root    string `json:"root,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DigestResult holds the digest of a piece of text.
type DigestResult struct {
	Algorithm string `json:"algorithm"`
	Bits      int    `json:"bits"`
	Digest    string `json:"digest"`
}

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the dtchaind HTTP API.
type Client struct {
	base       string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
//
//	c, err := client.New("http://localhost:8080", client.WithTimeout(5*time.Second))
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// BuildChain asks the server for a fresh chain of count records.
func (c *Client) BuildChain(ctx context.Context, count int) (*BuildResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.chainsURL(count), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var result BuildResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode build response: %w", err)
	}
	return &result, nil
}

// BuildChainCBOR is like BuildChain but transfers the chain as CBOR.
func (c *Client) BuildChainCBOR(ctx context.Context, count int) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.chainsURL(count), nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", mimeCBOR)

	body, err := c.do(req)
	if err != nil {
		return Document{}, err
	}
	return codec.Decode(bytes.NewReader(body), codec.FormatCBOR)
}

// VerifyChain submits doc for verification. A chain that fails verification
// is not an error; inspect VerifyResult.Valid.
func (c *Client) VerifyChain(ctx context.Context, doc Document) (*VerifyResult, error) {
	var result VerifyResult
	if err := c.postJSON(ctx, "/api/v1/chains/verify", doc, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExtendChain appends one record per payload to doc and returns the extended
// chain. The server rejects chains that do not verify.
func (c *Client) ExtendChain(ctx context.Context, doc Document, payloads ...string) (*BuildResult, error) {
	in := struct {
		Chain    Document `json:"chain"`
		Payloads []string `json:"payloads"`
	}{doc, payloads}

	var result BuildResult
	if err := c.postJSON(ctx, "/api/v1/chains/extend", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Digest returns the server's digest of data.
func (c *Client) Digest(ctx context.Context, data string) (*DigestResult, error) {
	u := c.base + "/api/v1/digest?data=" + url.QueryEscape(data)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var result DigestResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode digest response: %w", err)
	}
	return &result, nil
}

func (c *Client) chainsURL(count int) string {
	return c.base + "/api/v1/chains?count=" + strconv.Itoa(count)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}

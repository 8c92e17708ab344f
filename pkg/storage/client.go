// Package storage is a client for the hosted blob storage service used to
// keep mirrored profile pictures.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client uploads and serves blobs by path.
type Client interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

// APIError is returned when the storage service responds with a non-2xx
// status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storage: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPublicBaseURL overrides the base used to build public URLs. By
// default blobs are served from the same host they are uploaded to.
func WithPublicBaseURL(u string) Option {
	return func(c *httpClient) {
		c.publicBase = strings.TrimSuffix(u, "/")
	}
}

// WithBucket nests all object paths under the named bucket.
func WithBucket(name string) Option {
	return func(c *httpClient) {
		c.bucket = strings.Trim(name, "/")
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token      string
	baseURL    string
	publicBase string
	bucket     string
	http       *http.Client
}

func (c *httpClient) objectPath(path string) string {
	path = strings.TrimPrefix(path, "/")
	if c.bucket == "" {
		return path
	}
	return c.bucket + "/" + path
}

// NewClient creates a storage client for the given service base URL.
func NewClient(baseURL, token string, opts ...Option) Client {
	base := strings.TrimSuffix(baseURL, "/")
	c := &httpClient{
		token:      token,
		baseURL:    base,
		publicBase: base,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Upload(ctx context.Context, path, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/"+c.objectPath(path), bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "storage: create request")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	if err := c.do(req); err != nil {
		return eris.Wrapf(err, "storage: upload %s", path)
	}
	return nil
}

func (c *httpClient) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/"+c.objectPath(path), nil)
	if err != nil {
		return eris.Wrap(err, "storage: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	if err := c.do(req); err != nil {
		return eris.Wrapf(err, "storage: delete %s", path)
	}
	return nil
}

func (c *httpClient) PublicURL(path string) string {
	return c.publicBase + "/" + c.objectPath(path)
}

func (c *httpClient) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	return nil
}

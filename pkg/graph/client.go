// Package graph is a client for the Instagram Graph API covering the two
// free lookups the pipeline uses: reading the owned business account and
// business discovery of third-party business accounts.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Graph API.
const defaultBaseURL = "https://graph.facebook.com/v21.0"

// Client defines the Graph API operations used by the enrichment pipeline.
type Client interface {
	// OwnedProfile reads the authenticated business account itself.
	OwnedProfile(ctx context.Context) (*Profile, error)
	// BusinessDiscovery looks up a third-party business or creator account
	// by username. Returns ErrSelfLookup for the owned account's username
	// and a GraphError with IsNotFound() for unknown or personal accounts.
	BusinessDiscovery(ctx context.Context, username string) (*Profile, error)
}

// Profile is the subset of Graph API profile fields the pipeline reads.
type Profile struct {
	Username          string `json:"username"`
	Name              string `json:"name"`
	Biography         string `json:"biography"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
	ProfilePictureURL string `json:"profile_picture_url"`
	Website           string `json:"website"`
}

const profileFields = "username,name,biography,followers_count,follows_count,media_count,profile_picture_url,website"

type discoveryEnvelope struct {
	BusinessDiscovery *Profile `json:"business_discovery"`
	ID                string   `json:"id"`
}

// ErrSelfLookup is returned when business discovery is asked about the
// owned account; the API rejects self-discovery, use OwnedProfile instead.
var ErrSelfLookup = eris.New("graph: business discovery cannot target the owned account")

// GraphError is the error payload the Graph API returns on failure.
type GraphError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	StatusCode int    `json:"-"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph: HTTP %d: %s (code %d, subcode %d)", e.StatusCode, e.Message, e.Code, e.Subcode)
}

// IsNotFound reports whether the error means the username does not exist
// or is not a business/creator account.
func (e *GraphError) IsNotFound() bool {
	return e.Code == 110 || e.Subcode == 2207013
}

type graphErrorEnvelope struct {
	Error GraphError `json:"error"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	accessToken  string
	igUserID     string
	selfUsername string
	baseURL      string
	http         *http.Client
}

// NewClient creates a Graph API client bound to one owned business account.
// selfUsername is the owned account's handle, used to short-circuit
// self-discovery before it hits the API.
func NewClient(accessToken, igUserID, selfUsername string, opts ...Option) Client {
	c := &httpClient{
		accessToken:  accessToken,
		igUserID:     igUserID,
		selfUsername: selfUsername,
		baseURL:      defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) OwnedProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, c.igUserID, profileFields, &profile); err != nil {
		return nil, eris.Wrap(err, "graph: owned profile")
	}
	return &profile, nil
}

func (c *httpClient) BusinessDiscovery(ctx context.Context, username string) (*Profile, error) {
	if username == c.selfUsername {
		return nil, ErrSelfLookup
	}

	fields := fmt.Sprintf("business_discovery.username(%s){%s}", username, profileFields)
	var resp discoveryEnvelope
	if err := c.get(ctx, c.igUserID, fields, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("graph: business discovery %s", username))
	}
	if resp.BusinessDiscovery == nil {
		return nil, eris.Errorf("graph: empty business discovery response for %s", username)
	}
	return resp.BusinessDiscovery, nil
}

func (c *httpClient) get(ctx context.Context, node, fields string, out any) error {
	q := url.Values{}
	q.Set("fields", fields)
	q.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?%s", c.baseURL, node, q.Encode()), nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope graphErrorEnvelope
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			envelope.Error.StatusCode = resp.StatusCode
			return &envelope.Error
		}
		return eris.Errorf("graph: HTTP %d: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}

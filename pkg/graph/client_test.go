package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", "17841400000000000", "ourbrand", WithBaseURL(srv.URL))
}

func TestOwnedProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/17841400000000000", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		assert.Contains(t, r.URL.Query().Get("fields"), "followers_count")

		json.NewEncoder(w).Encode(Profile{
			Username:       "ourbrand",
			FollowersCount: 50000,
			MediaCount:     320,
		})
	})

	profile, err := c.OwnedProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ourbrand", profile.Username)
	assert.Equal(t, int64(50000), profile.FollowersCount)
}

func TestBusinessDiscovery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fields := r.URL.Query().Get("fields")
		assert.Contains(t, fields, "business_discovery.username(janedoe)")

		json.NewEncoder(w).Encode(discoveryEnvelope{
			BusinessDiscovery: &Profile{
				Username:          "janedoe",
				Name:              "Jane Doe",
				Biography:         "creator",
				FollowersCount:    1200,
				ProfilePictureURL: "https://cdn.example.com/pic.jpg",
			},
			ID: "17841400000000000",
		})
	})

	profile, err := c.BusinessDiscovery(context.Background(), "janedoe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", profile.Name)
	assert.Equal(t, int64(1200), profile.FollowersCount)
}

func TestBusinessDiscovery_SelfLookup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("self lookup must not reach the API")
	})

	_, err := c.BusinessDiscovery(context.Background(), "ourbrand")
	assert.ErrorIs(t, err, ErrSelfLookup)
}

func TestBusinessDiscovery_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(graphErrorEnvelope{Error: GraphError{
			Message: "Unsupported get request.",
			Type:    "GraphMethodException",
			Code:    110,
		}})
	})

	_, err := c.BusinessDiscovery(context.Background(), "notabusiness")
	require.Error(t, err)
	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.True(t, graphErr.IsNotFound())
	assert.Equal(t, http.StatusBadRequest, graphErr.StatusCode)
}

func TestBusinessDiscovery_OAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(graphErrorEnvelope{Error: GraphError{
			Message: "Error validating access token",
			Type:    "OAuthException",
			Code:    190,
		}})
	})

	_, err := c.BusinessDiscovery(context.Background(), "janedoe")
	require.Error(t, err)
	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.False(t, graphErr.IsNotFound())
	assert.Equal(t, 190, graphErr.Code)
}

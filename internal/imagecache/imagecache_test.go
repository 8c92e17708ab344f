package imagecache

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

type fakeBlobStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
	types   map[string]string
	failErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{uploads: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeBlobStore) Upload(_ context.Context, path, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.uploads[path] = data
	f.types[path] = contentType
	return nil
}

func (f *fakeBlobStore) PublicURL(path string) string {
	return "https://blobs.example.com/" + path
}

func imageServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", contentType)
		w.Write(body) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testRec(url string) *model.ProfileRecord {
	return &model.ProfileRecord{
		Username:              "janedoe",
		Scope:                 model.ScopeExternal,
		ProfilePicOriginalURL: &url,
	}
}

func TestMirror_StoresImage(t *testing.T) {
	body := bytes.Repeat([]byte{0xab}, 4096)
	srv := imageServer(t, "image/jpeg", body)
	blobs := newFakeBlobStore()
	c := New(blobs, Options{})

	path, err := c.Mirror(context.Background(), testRec(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "profile-pics/janedoe.jpg", path)
	assert.Equal(t, body, blobs.uploads[path])
	assert.Equal(t, "image/jpeg", blobs.types[path])
}

func TestMirror_UsesOwnerIDAndCollection(t *testing.T) {
	srv := imageServer(t, "image/png", bytes.Repeat([]byte{1}, 2048))
	blobs := newFakeBlobStore()
	c := New(blobs, Options{})

	rec := testRec(srv.URL)
	rec.Scope = model.ScopeCreator
	rec.OwnerID = "c1"

	path, err := c.Mirror(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "creator-avatars/c1.png", path)
}

func TestMirror_RejectsTinyBody(t *testing.T) {
	srv := imageServer(t, "image/jpeg", make([]byte, 150))
	blobs := newFakeBlobStore()
	c := New(blobs, Options{MinSizeBytes: 1024})

	_, err := c.Mirror(context.Background(), testRec(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
	assert.Empty(t, blobs.uploads)
}

func TestMirror_RejectsOversizedBody(t *testing.T) {
	srv := imageServer(t, "image/jpeg", bytes.Repeat([]byte{0xab}, 5000))
	blobs := newFakeBlobStore()
	c := New(blobs, Options{MinSizeBytes: 1024, MaxSizeBytes: 4096})

	_, err := c.Mirror(context.Background(), testRec(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Empty(t, blobs.uploads)
}

func TestMirror_NoURL(t *testing.T) {
	c := New(newFakeBlobStore(), Options{})
	_, err := c.Mirror(context.Background(), &model.ProfileRecord{Username: "janedoe"})
	assert.Error(t, err)
}

func TestMirror_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := New(newFakeBlobStore(), Options{})
	_, err := c.Mirror(context.Background(), testRec(srv.URL))
	assert.Error(t, err)
}

func TestExtFor(t *testing.T) {
	assert.Equal(t, "jpg", extFor("image/jpeg"))
	assert.Equal(t, "png", extFor("image/png; charset=binary"))
	assert.Equal(t, "webp", extFor("IMAGE/WEBP"))
	assert.Equal(t, "jpg", extFor(""))
}

func TestPublicURL(t *testing.T) {
	c := New(newFakeBlobStore(), Options{})
	assert.Equal(t, "https://blobs.example.com/profile-pics/janedoe.jpg", c.PublicURL("profile-pics/janedoe.jpg"))
}

// Package imagecache mirrors remote profile pictures into blob storage so
// that cached profiles never depend on expiring CDN URLs.
package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

// BlobStore is the destination for mirrored images. Implemented by
// pkg/storage for the hosted blob service and by fakes in tests.
type BlobStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	PublicURL(path string) string
}

// Options configures the image cache.
type Options struct {
	// MinSizeBytes rejects bodies smaller than this; tiny responses are
	// placeholder images or error pages, not real avatars.
	MinSizeBytes int64
	// MaxSizeBytes rejects bodies larger than this instead of storing a
	// truncated prefix.
	MaxSizeBytes int64
	Timeout      time.Duration
	UserAgent    string
	// Collection names the storage folder for external-scope pictures.
	// Creator and company pictures have fixed collections of their own.
	Collection string
}

// Cache downloads profile pictures and uploads them to blob storage.
type Cache struct {
	blobs  BlobStore
	client *http.Client
	opts   Options
}

// New creates an image cache backed by the given blob store.
func New(blobs BlobStore, opts Options) *Cache {
	if opts.MinSizeBytes == 0 {
		opts.MinSizeBytes = 1024
	}
	if opts.MaxSizeBytes == 0 {
		opts.MaxSizeBytes = 10 << 20
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	if opts.Collection == "" {
		opts.Collection = "profile-pics"
	}
	return &Cache{
		blobs:  blobs,
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Mirror downloads the record's original profile picture and stores it at
// {collection}/{key}.{ext}. It returns the storage path. Callers treat
// errors as soft: a failed mirror never fails the resolution that
// produced the record.
func (c *Cache) Mirror(ctx context.Context, rec *model.ProfileRecord) (string, error) {
	if rec.ProfilePicOriginalURL == nil || *rec.ProfilePicOriginalURL == "" {
		return "", eris.New("imagecache: record has no original picture URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *rec.ProfilePicOriginalURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "imagecache: create request")
	}
	// CDN endpoints reject requests without browser-looking headers.
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "imagecache: download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("imagecache: unexpected status %d from %s", resp.StatusCode, *rec.ProfilePicOriginalURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxSizeBytes+1))
	if err != nil {
		return "", eris.Wrap(err, "imagecache: read body")
	}
	if int64(len(data)) < c.opts.MinSizeBytes {
		return "", eris.Errorf("imagecache: body too small (%d bytes), likely a placeholder", len(data))
	}
	if int64(len(data)) > c.opts.MaxSizeBytes {
		return "", eris.Errorf("imagecache: body exceeds %d bytes", c.opts.MaxSizeBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	path := c.storagePath(rec, extFor(contentType))
	if err := c.blobs.Upload(ctx, path, contentType, data); err != nil {
		return "", eris.Wrapf(err, "imagecache: upload %s", path)
	}

	zap.L().Debug("mirrored profile picture",
		zap.String("username", rec.Username),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}

// PublicURL resolves a storage path to its public URL.
func (c *Cache) PublicURL(path string) string {
	return c.blobs.PublicURL(path)
}

func (c *Cache) storagePath(rec *model.ProfileRecord, ext string) string {
	key := rec.Username
	if rec.OwnerID != "" {
		key = rec.OwnerID
	}
	return fmt.Sprintf("%s/%s.%s", c.collectionFor(rec.Scope), key, ext)
}

func (c *Cache) collectionFor(scope model.OwnerScope) string {
	switch scope {
	case model.ScopeCreator:
		return "creator-avatars"
	case model.ScopeCompany:
		return "company-logos"
	default:
		return c.opts.Collection
	}
}

func extFor(contentType string) string {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

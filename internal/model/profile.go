// Package model defines the core types for the social-profile enrichment
// pipeline: the cached profile record, its owner scoping, and the raw
// per-platform result shapes returned by external sources.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// OwnerScope discriminates who a cached profile row belongs to. A username
// may have independent cached rows per scope, but a single subject is
// canonically one row.
type OwnerScope string

const (
	ScopeCreator  OwnerScope = "creator"
	ScopeCompany  OwnerScope = "company"
	ScopeExternal OwnerScope = "external"
)

// SourceKind records the provenance of the last successful write to a
// profile row, used for cost and audit reporting.
type SourceKind string

const (
	SourceOwned       SourceKind = "owned"
	SourceDiscovery   SourceKind = "business_discovery"
	SourcePaidScraper SourceKind = "paid_scraper"
	SourceManual      SourceKind = "manual"
)

// Platform identifies the social network a profile belongs to.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// ProfileRecord is one row of the profile cache, keyed by
// (username, owner scope). Optional fields are pointers: nil means
// "unknown", never zero.
type ProfileRecord struct {
	Username string     `json:"username"`
	Scope    OwnerScope `json:"scope"`
	OwnerID  string     `json:"owner_id,omitempty"` // subject id for creator/company scopes
	Platform Platform   `json:"platform"`
	Source   SourceKind `json:"source"`

	Followers  *int64  `json:"followers,omitempty"`
	Following  *int64  `json:"following,omitempty"`
	PostsCount *int64  `json:"posts_count,omitempty"`
	FullName   *string `json:"full_name,omitempty"`
	Bio        *string `json:"bio,omitempty"`

	ProfilePicOriginalURL *string `json:"profile_pic_original_url,omitempty"`
	ProfilePicStoragePath *string `json:"profile_pic_storage_path,omitempty"`

	IsVerified bool `json:"is_verified"`
	IsPrivate  bool `json:"is_private"`

	LastFetchedAt time.Time `json:"last_fetched_at"`
}

// HasProfilePic reports whether the record carries a durable image we can
// re-serve without another fetch.
func (r *ProfileRecord) HasProfilePic() bool {
	return r != nil && r.ProfilePicStoragePath != nil && *r.ProfilePicStoragePath != ""
}

// EnrichmentScore summarizes completeness of the record across enriched
// fields as a 0-100 value.
func (r *ProfileRecord) EnrichmentScore() int {
	if r == nil {
		return 0
	}
	fields := []bool{
		r.Followers != nil,
		r.Following != nil,
		r.PostsCount != nil,
		r.FullName != nil && *r.FullName != "",
		r.Bio != nil && *r.Bio != "",
		r.HasProfilePic(),
	}
	set := 0
	for _, ok := range fields {
		if ok {
			set++
		}
	}
	return set * 100 / len(fields)
}

// NormalizeUsername canonicalizes a raw handle: NFKC-folds, strips URL
// decoration and a leading @, trims slashes and whitespace, and lowercases.
// Returns "" if nothing usable remains.
func NormalizeUsername(raw string) string {
	s := norm.NFKC.String(strings.TrimSpace(raw))

	for _, prefix := range []string{
		"https://www.instagram.com/", "http://www.instagram.com/",
		"https://instagram.com/", "http://instagram.com/",
		"https://www.tiktok.com/@", "https://tiktok.com/@",
		"www.instagram.com/", "instagram.com/",
	} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = s[len(prefix):]
			break
		}
	}

	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUsernames normalizes and case-insensitively deduplicates a list
// of raw handles, dropping empties. Order of first appearance is preserved.
func NormalizeUsernames(raws []string) []string {
	seen := make(map[string]struct{}, len(raws))
	var out []string
	for _, raw := range raws {
		u := NormalizeUsername(raw)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

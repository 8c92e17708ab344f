package model

import "time"

// ProfileSnapshot is the transfer shape a source returns for one username.
// It carries only what the source actually knew; nil fields are merged
// without regressing previously known data.
type ProfileSnapshot struct {
	Username      string
	Platform      Platform
	Followers     *int64
	Following     *int64
	PostsCount    *int64
	FullName      *string
	Bio           *string
	ProfilePicURL *string
	// StoragePath is set when the source already holds a durable copy of
	// the picture (avatar reuse), so no download is needed.
	StoragePath *string
	IsVerified  *bool
	IsPrivate   *bool
}

// Merge applies the snapshot onto the record. Non-nil snapshot fields win;
// a nil snapshot field never overwrites a value the record already has.
func (s *ProfileSnapshot) Merge(rec *ProfileRecord, source SourceKind, now time.Time) {
	if s.Followers != nil {
		rec.Followers = s.Followers
	}
	if s.Following != nil {
		rec.Following = s.Following
	}
	if s.PostsCount != nil {
		rec.PostsCount = s.PostsCount
	}
	if s.FullName != nil && *s.FullName != "" {
		rec.FullName = s.FullName
	}
	if s.Bio != nil && *s.Bio != "" {
		rec.Bio = s.Bio
	}
	if s.ProfilePicURL != nil && *s.ProfilePicURL != "" {
		rec.ProfilePicOriginalURL = s.ProfilePicURL
	}
	if s.StoragePath != nil && *s.StoragePath != "" {
		rec.ProfilePicStoragePath = s.StoragePath
	}
	if s.IsVerified != nil {
		rec.IsVerified = *s.IsVerified
	}
	if s.IsPrivate != nil {
		rec.IsPrivate = *s.IsPrivate
	}
	if s.Platform != "" {
		rec.Platform = s.Platform
	}
	rec.Source = source
	rec.LastFetchedAt = now
}

// Ptr returns a pointer to v. Convenience for building snapshots.
func Ptr[T any](v T) *T {
	return &v
}

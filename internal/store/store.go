// Package store persists the profile cache and the denormalized subject
// snapshots, and answers the staleness queries that gate paid re-fetches.
package store

import (
	"context"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

// SubjectHandle is one enrichment candidate collected from a subject
// collection: the owning subject and its (raw, un-normalized) handle.
type SubjectHandle struct {
	SubjectID string           `json:"subject_id"`
	Username  string           `json:"username"`
	Scope     model.OwnerScope `json:"scope"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Profile cache
	GetProfile(ctx context.Context, username string, scope model.OwnerScope) (*model.ProfileRecord, error)
	UpsertProfile(ctx context.Context, rec *model.ProfileRecord) error
	UpsertProfiles(ctx context.Context, recs []*model.ProfileRecord) error
	ListProfiles(ctx context.Context) ([]*model.ProfileRecord, error)
	ListStaleUsernames(ctx context.Context, usernames []string, maxAge StaleWindow) ([]string, error)

	// Subject collections (candidates for the scheduled sync)
	ListCreatorHandles(ctx context.Context) ([]SubjectHandle, error)
	ListCompanyHandles(ctx context.Context) ([]SubjectHandle, error)
	ListCommunityHandles(ctx context.Context) ([]SubjectHandle, error)

	// Denormalized subject view; written together with the cache row on
	// every successful resolution.
	UpdateSubjectSnapshot(ctx context.Context, rec *model.ProfileRecord) error

	// GetSubjectAvatar returns the subject's independently uploaded avatar
	// path, if any ("" when unset or scope is external).
	GetSubjectAvatar(ctx context.Context, scope model.OwnerScope, subjectID string) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// profileColumns is the column list shared by both implementations; order
// matches profileRow.
var profileColumns = []string{
	"username", "owner_scope", "owner_id", "platform", "source",
	"followers", "following", "posts_count", "full_name", "bio",
	"profile_pic_original_url", "profile_pic_storage_path",
	"is_verified", "is_private", "last_fetched_at",
}

// profileRow flattens a record into the column order above.
func profileRow(rec *model.ProfileRecord) []any {
	return []any{
		rec.Username, string(rec.Scope), rec.OwnerID, string(rec.Platform), string(rec.Source),
		rec.Followers, rec.Following, rec.PostsCount, rec.FullName, rec.Bio,
		rec.ProfilePicOriginalURL, rec.ProfilePicStoragePath,
		rec.IsVerified, rec.IsPrivate, rec.LastFetchedAt,
	}
}

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS profile_cache (
	username                 TEXT NOT NULL,
	owner_scope              TEXT NOT NULL,
	owner_id                 TEXT NOT NULL DEFAULT '',
	platform                 TEXT NOT NULL DEFAULT 'instagram',
	source                   TEXT NOT NULL,
	followers                INTEGER,
	following                INTEGER,
	posts_count              INTEGER,
	full_name                TEXT,
	bio                      TEXT,
	profile_pic_original_url TEXT,
	profile_pic_storage_path TEXT,
	is_verified              INTEGER NOT NULL DEFAULT 0,
	is_private               INTEGER NOT NULL DEFAULT 0,
	last_fetched_at          DATETIME NOT NULL,
	created_at               DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at               DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (username, owner_scope)
);

CREATE INDEX IF NOT EXISTS idx_profile_cache_last_fetched ON profile_cache(last_fetched_at);

CREATE TABLE IF NOT EXISTS creators (
	id                     TEXT PRIMARY KEY,
	instagram_handle       TEXT,
	avatar_path            TEXT,
	instagram_followers    INTEGER,
	instagram_profile_pic  TEXT,
	instagram_last_updated DATETIME,
	enrichment_score       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS companies (
	id                     TEXT PRIMARY KEY,
	instagram_handle       TEXT,
	avatar_path            TEXT,
	instagram_followers    INTEGER,
	instagram_profile_pic  TEXT,
	instagram_last_updated DATETIME,
	enrichment_score       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS community_members (
	id               TEXT PRIMARY KEY,
	instagram_handle TEXT
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetProfile(ctx context.Context, username string, scope model.OwnerScope) (*model.ProfileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, owner_scope, owner_id, platform, source,
			followers, following, posts_count, full_name, bio,
			profile_pic_original_url, profile_pic_storage_path,
			is_verified, is_private, last_fetched_at
		FROM profile_cache WHERE username = ? AND owner_scope = ?`,
		username, string(scope),
	)

	rec, err := scanSQLiteProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s/%s", username, scope)
	}
	return rec, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, rec *model.ProfileRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_cache (
			username, owner_scope, owner_id, platform, source,
			followers, following, posts_count, full_name, bio,
			profile_pic_original_url, profile_pic_storage_path,
			is_verified, is_private, last_fetched_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (username, owner_scope) DO UPDATE SET
			owner_id = excluded.owner_id,
			platform = excluded.platform,
			source = excluded.source,
			followers = excluded.followers,
			following = excluded.following,
			posts_count = excluded.posts_count,
			full_name = excluded.full_name,
			bio = excluded.bio,
			profile_pic_original_url = excluded.profile_pic_original_url,
			profile_pic_storage_path = excluded.profile_pic_storage_path,
			is_verified = excluded.is_verified,
			is_private = excluded.is_private,
			last_fetched_at = excluded.last_fetched_at,
			updated_at = datetime('now')`,
		profileRow(rec)...,
	)
	return eris.Wrapf(err, "sqlite: upsert profile %s/%s", rec.Username, rec.Scope)
}

func (s *SQLiteStore) UpsertProfiles(ctx context.Context, recs []*model.ProfileRecord) error {
	for _, rec := range recs {
		if err := s.UpsertProfile(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]*model.ProfileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, owner_scope, owner_id, platform, source,
			followers, following, posts_count, full_name, bio,
			profile_pic_original_url, profile_pic_storage_path,
			is_verified, is_private, last_fetched_at
		FROM profile_cache ORDER BY username, owner_scope`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close()

	var recs []*model.ProfileRecord
	for rows.Next() {
		rec, err := scanSQLiteProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate profiles")
}

func (s *SQLiteStore) ListStaleUsernames(ctx context.Context, usernames []string, window StaleWindow) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(usernames)), ",")
	args := make([]any, len(usernames))
	for i, u := range usernames {
		args[i] = u
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, MAX(last_fetched_at) FROM profile_cache
		 WHERE username IN (`+placeholders+`) GROUP BY username`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stale usernames")
	}
	defer rows.Close()

	now := time.Now().UTC()
	fresh := make(map[string]bool)
	for rows.Next() {
		var username string
		var lastFetched time.Time
		if err := rows.Scan(&username, &lastFetched); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stale row")
		}
		if !IsStale(&model.ProfileRecord{LastFetchedAt: lastFetched}, window, now) {
			fresh[username] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate stale rows")
	}

	var stale []string
	for _, u := range usernames {
		if !fresh[u] {
			stale = append(stale, u)
		}
	}
	return stale, nil
}

func (s *SQLiteStore) ListCreatorHandles(ctx context.Context) ([]SubjectHandle, error) {
	return s.listHandles(ctx,
		`SELECT id, instagram_handle FROM creators WHERE instagram_handle IS NOT NULL AND instagram_handle <> ''`,
		model.ScopeCreator)
}

func (s *SQLiteStore) ListCompanyHandles(ctx context.Context) ([]SubjectHandle, error) {
	return s.listHandles(ctx,
		`SELECT id, instagram_handle FROM companies WHERE instagram_handle IS NOT NULL AND instagram_handle <> ''`,
		model.ScopeCompany)
}

func (s *SQLiteStore) ListCommunityHandles(ctx context.Context) ([]SubjectHandle, error) {
	return s.listHandles(ctx,
		`SELECT id, instagram_handle FROM community_members WHERE instagram_handle IS NOT NULL AND instagram_handle <> ''`,
		model.ScopeExternal)
}

func (s *SQLiteStore) listHandles(ctx context.Context, query string, scope model.OwnerScope) ([]SubjectHandle, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s handles", scope)
	}
	defer rows.Close()

	var handles []SubjectHandle
	for rows.Next() {
		h := SubjectHandle{Scope: scope}
		if err := rows.Scan(&h.SubjectID, &h.Username); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan handle")
		}
		handles = append(handles, h)
	}
	return handles, eris.Wrap(rows.Err(), "sqlite: iterate handles")
}

func (s *SQLiteStore) UpdateSubjectSnapshot(ctx context.Context, rec *model.ProfileRecord) error {
	table, ok := subjectTable(rec.Scope)
	if !ok || rec.OwnerID == "" {
		return nil
	}

	var pic *string
	if rec.HasProfilePic() {
		pic = rec.ProfilePicStoragePath
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET
			instagram_followers = ?,
			instagram_profile_pic = ?,
			instagram_last_updated = ?,
			enrichment_score = ?
		WHERE id = ?`,
		rec.Followers, pic, rec.LastFetchedAt, rec.EnrichmentScore(), rec.OwnerID,
	)
	return eris.Wrapf(err, "sqlite: update %s snapshot %s", rec.Scope, rec.OwnerID)
}

func (s *SQLiteStore) GetSubjectAvatar(ctx context.Context, scope model.OwnerScope, subjectID string) (string, error) {
	table, ok := subjectTable(scope)
	if !ok || subjectID == "" {
		return "", nil
	}

	var avatar sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT avatar_path FROM `+table+` WHERE id = ?`, subjectID).Scan(&avatar)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get %s avatar %s", scope, subjectID)
	}
	return avatar.String, nil
}

func scanSQLiteProfile(row scannable) (*model.ProfileRecord, error) {
	var rec model.ProfileRecord
	var scope, platform, source string
	var followers, following, posts sql.NullInt64
	var fullName, bio, origURL, storagePath sql.NullString

	err := row.Scan(
		&rec.Username, &scope, &rec.OwnerID, &platform, &source,
		&followers, &following, &posts, &fullName, &bio,
		&origURL, &storagePath,
		&rec.IsVerified, &rec.IsPrivate, &rec.LastFetchedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Scope = model.OwnerScope(scope)
	rec.Platform = model.Platform(platform)
	rec.Source = model.SourceKind(source)
	if followers.Valid {
		rec.Followers = &followers.Int64
	}
	if following.Valid {
		rec.Following = &following.Int64
	}
	if posts.Valid {
		rec.PostsCount = &posts.Int64
	}
	if fullName.Valid {
		rec.FullName = &fullName.String
	}
	if bio.Valid {
		rec.Bio = &bio.String
	}
	if origURL.Valid {
		rec.ProfilePicOriginalURL = &origURL.String
	}
	if storagePath.Valid {
		rec.ProfilePicStoragePath = &storagePath.String
	}
	return &rec, nil
}

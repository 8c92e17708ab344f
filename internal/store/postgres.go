package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/creatorpulse/enrich-cli/internal/db"
	"github.com/creatorpulse/enrich-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlGetProfile = `SELECT username, owner_scope, owner_id, platform, source,
		followers, following, posts_count, full_name, bio,
		profile_pic_original_url, profile_pic_storage_path,
		is_verified, is_private, last_fetched_at
	FROM profile_cache WHERE username = $1 AND owner_scope = $2`

	sqlUpsertProfile = `INSERT INTO profile_cache (
		username, owner_scope, owner_id, platform, source,
		followers, following, posts_count, full_name, bio,
		profile_pic_original_url, profile_pic_storage_path,
		is_verified, is_private, last_fetched_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
	ON CONFLICT (username, owner_scope) DO UPDATE SET
		owner_id = EXCLUDED.owner_id,
		platform = EXCLUDED.platform,
		source = EXCLUDED.source,
		followers = EXCLUDED.followers,
		following = EXCLUDED.following,
		posts_count = EXCLUDED.posts_count,
		full_name = EXCLUDED.full_name,
		bio = EXCLUDED.bio,
		profile_pic_original_url = EXCLUDED.profile_pic_original_url,
		profile_pic_storage_path = EXCLUDED.profile_pic_storage_path,
		is_verified = EXCLUDED.is_verified,
		is_private = EXCLUDED.is_private,
		last_fetched_at = EXCLUDED.last_fetched_at,
		updated_at = now()`

	sqlFreshUsernames = `SELECT username, MAX(last_fetched_at)
	FROM profile_cache WHERE username = ANY($1) GROUP BY username`

	sqlListProfiles = `SELECT username, owner_scope, owner_id, platform, source,
		followers, following, posts_count, full_name, bio,
		profile_pic_original_url, profile_pic_storage_path,
		is_verified, is_private, last_fetched_at
	FROM profile_cache ORDER BY username, owner_scope`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profile_cache (
	username                 TEXT NOT NULL,
	owner_scope              TEXT NOT NULL,
	owner_id                 TEXT NOT NULL DEFAULT '',
	platform                 TEXT NOT NULL DEFAULT 'instagram',
	source                   TEXT NOT NULL,
	followers                BIGINT,
	following                BIGINT,
	posts_count              BIGINT,
	full_name                TEXT,
	bio                      TEXT,
	profile_pic_original_url TEXT,
	profile_pic_storage_path TEXT,
	is_verified              BOOLEAN NOT NULL DEFAULT false,
	is_private               BOOLEAN NOT NULL DEFAULT false,
	last_fetched_at          TIMESTAMPTZ NOT NULL,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (username, owner_scope)
);

CREATE INDEX IF NOT EXISTS idx_profile_cache_last_fetched ON profile_cache(last_fetched_at);
CREATE INDEX IF NOT EXISTS idx_profile_cache_source ON profile_cache(source);

CREATE TABLE IF NOT EXISTS creators (
	id                     TEXT PRIMARY KEY,
	instagram_handle       TEXT,
	avatar_path            TEXT,
	instagram_followers    BIGINT,
	instagram_profile_pic  TEXT,
	instagram_last_updated TIMESTAMPTZ,
	enrichment_score       INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS companies (
	id                     TEXT PRIMARY KEY,
	instagram_handle       TEXT,
	avatar_path            TEXT,
	instagram_followers    BIGINT,
	instagram_profile_pic  TEXT,
	instagram_last_updated TIMESTAMPTZ,
	enrichment_score       INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS community_members (
	id               TEXT PRIMARY KEY,
	instagram_handle TEXT
);

CREATE INDEX IF NOT EXISTS idx_creators_handle ON creators(instagram_handle);
CREATE INDEX IF NOT EXISTS idx_companies_handle ON companies(instagram_handle);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, username string, scope model.OwnerScope) (*model.ProfileRecord, error) {
	row := s.pool.QueryRow(ctx, sqlGetProfile, username, string(scope))

	rec, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s/%s", username, scope)
	}
	return rec, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, rec *model.ProfileRecord) error {
	_, err := s.pool.Exec(ctx, sqlUpsertProfile, profileRow(rec)...)
	return eris.Wrapf(err, "postgres: upsert profile %s/%s", rec.Username, rec.Scope)
}

func (s *PostgresStore) UpsertProfiles(ctx context.Context, recs []*model.ProfileRecord) error {
	if len(recs) == 0 {
		return nil
	}

	rows := make([][]any, len(recs))
	for i, rec := range recs {
		rows[i] = profileRow(rec)
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "profile_cache",
		Columns:      profileColumns,
		ConflictKeys: []string{"username", "owner_scope"},
	}, rows)
	return eris.Wrap(err, "postgres: bulk upsert profiles")
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]*model.ProfileRecord, error) {
	rows, err := s.pool.Query(ctx, sqlListProfiles)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var recs []*model.ProfileRecord
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate profiles")
}

func (s *PostgresStore) ListStaleUsernames(ctx context.Context, usernames []string, window StaleWindow) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, sqlFreshUsernames, usernames)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stale usernames")
	}
	defer rows.Close()

	now := time.Now().UTC()
	fresh := make(map[string]bool)
	for rows.Next() {
		var username string
		var lastFetched time.Time
		if err := rows.Scan(&username, &lastFetched); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stale row")
		}
		if !IsStale(&model.ProfileRecord{LastFetchedAt: lastFetched}, window, now) {
			fresh[username] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate stale rows")
	}

	var stale []string
	for _, u := range usernames {
		if !fresh[u] {
			stale = append(stale, u)
		}
	}
	return stale, nil
}

func (s *PostgresStore) ListCreatorHandles(ctx context.Context) ([]SubjectHandle, error) {
	return s.listHandles(ctx,
		`SELECT id, instagram_handle FROM creators WHERE instagram_handle IS NOT NULL AND instagram_handle <> ''`,
		model.ScopeCreator)
}

func (s *PostgresStore) ListCompanyHandles(ctx context.Context) ([]SubjectHandle, error) {
	return s.listHandles(ctx,
		`SELECT id, instagram_handle FROM companies WHERE instagram_handle IS NOT NULL AND instagram_handle <> ''`,
		model.ScopeCompany)
}

func (s *PostgresStore) ListCommunityHandles(ctx context.Context) ([]SubjectHandle, error) {
	return s.listHandles(ctx,
		`SELECT id, instagram_handle FROM community_members WHERE instagram_handle IS NOT NULL AND instagram_handle <> ''`,
		model.ScopeExternal)
}

func (s *PostgresStore) listHandles(ctx context.Context, query string, scope model.OwnerScope) ([]SubjectHandle, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s handles", scope)
	}
	defer rows.Close()

	var handles []SubjectHandle
	for rows.Next() {
		h := SubjectHandle{Scope: scope}
		if err := rows.Scan(&h.SubjectID, &h.Username); err != nil {
			return nil, eris.Wrap(err, "postgres: scan handle")
		}
		handles = append(handles, h)
	}
	return handles, eris.Wrap(rows.Err(), "postgres: iterate handles")
}

func (s *PostgresStore) UpdateSubjectSnapshot(ctx context.Context, rec *model.ProfileRecord) error {
	table, ok := subjectTable(rec.Scope)
	if !ok || rec.OwnerID == "" {
		return nil // external rows have no subject to denormalize onto
	}

	var pic *string
	if rec.HasProfilePic() {
		pic = rec.ProfilePicStoragePath
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE `+table+` SET
			instagram_followers = $1,
			instagram_profile_pic = $2,
			instagram_last_updated = $3,
			enrichment_score = $4
		WHERE id = $5`,
		rec.Followers, pic, rec.LastFetchedAt, rec.EnrichmentScore(), rec.OwnerID,
	)
	return eris.Wrapf(err, "postgres: update %s snapshot %s", rec.Scope, rec.OwnerID)
}

func (s *PostgresStore) GetSubjectAvatar(ctx context.Context, scope model.OwnerScope, subjectID string) (string, error) {
	table, ok := subjectTable(scope)
	if !ok || subjectID == "" {
		return "", nil
	}

	var avatar *string
	err := s.pool.QueryRow(ctx, `SELECT avatar_path FROM `+table+` WHERE id = $1`, subjectID).Scan(&avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get %s avatar %s", scope, subjectID)
	}
	if avatar == nil {
		return "", nil
	}
	return *avatar, nil
}

func subjectTable(scope model.OwnerScope) (string, bool) {
	switch scope {
	case model.ScopeCreator:
		return "creators", true
	case model.ScopeCompany:
		return "companies", true
	default:
		return "", false
	}
}

// scannable matches both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanProfile(row scannable) (*model.ProfileRecord, error) {
	var rec model.ProfileRecord
	var scope, platform, source string

	err := row.Scan(
		&rec.Username, &scope, &rec.OwnerID, &platform, &source,
		&rec.Followers, &rec.Following, &rec.PostsCount, &rec.FullName, &rec.Bio,
		&rec.ProfilePicOriginalURL, &rec.ProfilePicStoragePath,
		&rec.IsVerified, &rec.IsPrivate, &rec.LastFetchedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Scope = model.OwnerScope(scope)
	rec.Platform = model.Platform(platform)
	rec.Source = model.SourceKind(source)
	return &rec, nil
}

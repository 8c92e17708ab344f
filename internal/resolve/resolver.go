package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/store"
)

// ImageMirror persists a record's remote profile picture to durable
// storage. Implemented by imagecache.Cache.
type ImageMirror interface {
	Mirror(ctx context.Context, rec *model.ProfileRecord) (string, error)
}

// BatchSource is a source that can resolve many usernames in one backend
// call. The paid tier implements it; this is what keeps a batch at one
// billable run instead of N.
type BatchSource interface {
	Source
	FetchBatch(ctx context.Context, platform model.Platform, usernames []string) (map[string]model.ProfileSnapshot, error)
}

// Resolver walks the tiers for one username and writes results through
// the cache and image stores.
type Resolver struct {
	store store.Store
	free  []Source
	paid  BatchSource

	images          ImageMirror
	windows         map[model.OwnerScope]store.StaleWindow
	freeConcurrency int
	now             func() time.Time
}

// Option configures the resolver.
type Option func(*Resolver)

// WithImages enables image mirroring on successful resolutions.
func WithImages(m ImageMirror) Option {
	return func(r *Resolver) {
		r.images = m
	}
}

// WithStaleWindow overrides the staleness window for one scope.
func WithStaleWindow(scope model.OwnerScope, w store.StaleWindow) Option {
	return func(r *Resolver) {
		r.windows[scope] = w
	}
}

// WithFreeConcurrency bounds parallel free-tier lookups in batch mode.
func WithFreeConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.freeConcurrency = n
		}
	}
}

// WithNow sets a fixed clock for testing.
func WithNow(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver builds a resolver over the free tiers (in cost order) and
// the optional paid tier.
func NewResolver(st store.Store, free []Source, paid BatchSource, opts ...Option) *Resolver {
	r := &Resolver{
		store: st,
		free:  free,
		paid:  paid,
		windows: map[model.OwnerScope]store.StaleWindow{
			model.ScopeCreator:  store.WindowDays(7),
			model.ScopeCompany:  store.WindowDays(30),
			model.ScopeExternal: store.WindowDays(7),
		},
		freeConcurrency: 10,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) window(scope model.OwnerScope) store.StaleWindow {
	if w, ok := r.windows[scope]; ok {
		return w
	}
	return store.WindowDays(7)
}

// Resolve runs the full chain for one username. Exhausting every tier is
// a StatusNotFound outcome, not an error; errors mean the store itself
// failed.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Outcome, error) {
	req = req.normalized()
	if req.Username == "" {
		return nil, eris.New("resolve: empty username")
	}

	cached, err := r.store.GetProfile(ctx, req.Username, req.Scope)
	if err != nil {
		return nil, err
	}
	if r.freshComplete(cached) {
		return &Outcome{Username: req.Username, Status: StatusCached, Source: cached.Source, Record: cached}, nil
	}

	for _, src := range r.allSources() {
		if !src.Available(req) {
			continue
		}
		snap, err := src.Fetch(ctx, req)
		if err != nil {
			r.logTierFailure(src.Kind(), req.Username, err)
			continue
		}

		rec, err := r.finalize(ctx, req, cached, snap, src.Kind())
		if err != nil {
			return nil, err
		}
		return &Outcome{
			Username: req.Username,
			Status:   statusFor(src.Kind(), snap),
			Source:   src.Kind(),
			Record:   rec,
		}, nil
	}

	zap.L().Info("username exhausted all tiers",
		zap.String("username", req.Username),
		zap.String("scope", string(req.Scope)),
	)
	return &Outcome{Username: req.Username, Status: StatusNotFound}, nil
}

func (r *Resolver) allSources() []Source {
	if r.paid == nil {
		return r.free
	}
	return append(append([]Source{}, r.free...), r.paid)
}

// freshComplete is the cache short-circuit: a row only skips the chain if
// it is inside its window and already carries both counters and a durable
// picture.
func (r *Resolver) freshComplete(rec *model.ProfileRecord) bool {
	if rec == nil {
		return false
	}
	if store.IsStale(rec, r.window(rec.Scope), r.now()) {
		return false
	}
	return rec.Followers != nil && rec.HasProfilePic()
}

// finalize merges the snapshot onto the cached row (or a new one), mirrors
// the picture, and writes through cache and subject snapshot.
func (r *Resolver) finalize(ctx context.Context, req Request, cached *model.ProfileRecord, snap *model.ProfileSnapshot, kind model.SourceKind) (*model.ProfileRecord, error) {
	rec := cached
	if rec == nil {
		rec = &model.ProfileRecord{
			Username: req.Username,
			Scope:    req.Scope,
			Platform: req.Platform,
		}
	}
	if rec.OwnerID == "" {
		rec.OwnerID = req.SubjectID
	}
	snap.Merge(rec, kind, r.now())

	r.mirrorImage(ctx, rec)

	if err := r.store.UpsertProfile(ctx, rec); err != nil {
		return nil, err
	}
	if err := r.store.UpdateSubjectSnapshot(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// mirrorImage is a soft step: a failed download or upload leaves the
// storage path empty and the resolution still counts.
func (r *Resolver) mirrorImage(ctx context.Context, rec *model.ProfileRecord) {
	if r.images == nil || rec.HasProfilePic() {
		return
	}
	if rec.ProfilePicOriginalURL == nil || *rec.ProfilePicOriginalURL == "" {
		return
	}
	path, err := r.images.Mirror(ctx, rec)
	if err != nil {
		zap.L().Warn("profile picture mirror failed",
			zap.String("username", rec.Username),
			zap.Error(err),
		)
		return
	}
	rec.ProfilePicStoragePath = &path
}

func (r *Resolver) logTierFailure(kind model.SourceKind, username string, err error) {
	if errors.Is(err, ErrNoData) {
		zap.L().Debug("tier had no data",
			zap.String("source", string(kind)),
			zap.String("username", username),
		)
		return
	}
	zap.L().Warn("tier failed, advancing",
		zap.String("source", string(kind)),
		zap.String("username", username),
		zap.Error(err),
	)
}

// statusFor labels the outcome: avatar reuse from owned data produced no
// fresh fetch, everything else did.
func statusFor(kind model.SourceKind, snap *model.ProfileSnapshot) Status {
	if kind == model.SourceOwned && snap.Followers == nil && snap.StoragePath != nil {
		return StatusReused
	}
	return StatusResolved
}

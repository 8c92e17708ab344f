package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/store"
	"github.com/creatorpulse/enrich-cli/pkg/graph"
)

// OwnedSource serves requests from data the system already owns: the
// acting account's own Graph profile, and avatars subjects uploaded
// independently. Zero external cost beyond the authenticated self lookup.
type OwnedSource struct {
	store          store.Store
	graph          graph.Client
	actingUsername string
}

// NewOwnedSource creates the owned-data tier. graph may be nil when no
// connected account is configured; avatar reuse still works.
func NewOwnedSource(st store.Store, gc graph.Client, actingUsername string) *OwnedSource {
	return &OwnedSource{store: st, graph: gc, actingUsername: actingUsername}
}

func (s *OwnedSource) Kind() model.SourceKind {
	return model.SourceOwned
}

func (s *OwnedSource) Available(req Request) bool {
	if s.graph != nil && s.actingUsername != "" && req.Username == s.actingUsername {
		return true
	}
	// Avatar reuse needs a known subject row to read from.
	return req.SubjectID != "" && (req.Scope == model.ScopeCreator || req.Scope == model.ScopeCompany)
}

func (s *OwnedSource) Fetch(ctx context.Context, req Request) (*model.ProfileSnapshot, error) {
	if s.graph != nil && req.Username == s.actingUsername {
		profile, err := s.graph.OwnedProfile(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "owned: self lookup")
		}
		snap := snapshotFromGraph(profile)
		return &snap, nil
	}

	avatar, err := s.store.GetSubjectAvatar(ctx, req.Scope, req.SubjectID)
	if err != nil {
		return nil, eris.Wrap(err, "owned: read subject avatar")
	}
	if avatar == "" {
		return nil, ErrNoData
	}
	return &model.ProfileSnapshot{
		Username:    req.Username,
		Platform:    req.Platform,
		StoragePath: &avatar,
	}, nil
}

func snapshotFromGraph(p *graph.Profile) model.ProfileSnapshot {
	snap := model.ProfileSnapshot{
		Username:  model.NormalizeUsername(p.Username),
		Platform:  model.PlatformInstagram,
		Followers: model.Ptr(p.FollowersCount),
		Following: model.Ptr(p.FollowsCount),
	}
	if p.MediaCount > 0 {
		snap.PostsCount = model.Ptr(p.MediaCount)
	}
	if p.Name != "" {
		snap.FullName = &p.Name
	}
	if p.Biography != "" {
		snap.Bio = &p.Biography
	}
	if p.ProfilePictureURL != "" {
		snap.ProfilePicURL = &p.ProfilePictureURL
	}
	return snap
}

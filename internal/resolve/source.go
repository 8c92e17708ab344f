// Package resolve turns usernames into profile records by walking data
// sources in cost-ascending order: cache, owned data, free business
// discovery, paid scraper.
package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

// Request identifies one username to resolve. SubjectID is set when the
// lookup is on behalf of a known subject (creator or company row); it
// enables avatar reuse and the denormalized snapshot write-back.
type Request struct {
	Username  string
	Scope     model.OwnerScope
	SubjectID string
	Platform  model.Platform
}

func (r Request) normalized() Request {
	r.Username = model.NormalizeUsername(r.Username)
	if r.Platform == "" {
		r.Platform = model.PlatformInstagram
	}
	if r.Scope == "" {
		r.Scope = model.ScopeExternal
	}
	return r
}

// ErrNoData means the source answered but had nothing for this username
// (unknown account, private profile, not a business account). Routine,
// never surfaced past the resolver.
var ErrNoData = eris.New("resolve: source has no data")

// Source is one tier of the chain.
type Source interface {
	Kind() model.SourceKind

	// Available reports whether the source can serve this request at all.
	// Missing credentials or an open circuit make a source unavailable;
	// the resolver then behaves as if the tier does not exist.
	Available(req Request) bool

	Fetch(ctx context.Context, req Request) (*model.ProfileSnapshot, error)
}

// Status classifies how a resolution ended.
type Status string

const (
	// StatusCached means the cache row was fresh and complete.
	StatusCached Status = "cached"
	// StatusReused means durable data already on the subject satisfied the
	// request without any outbound call.
	StatusReused Status = "reused"
	// StatusResolved means an external source produced fresh data.
	StatusResolved Status = "resolved"
	// StatusNotFound means every tier was exhausted without data.
	StatusNotFound Status = "not_found"
)

// Outcome is the discriminated result of one resolution. NotFound is an
// outcome, not an error.
type Outcome struct {
	Username string
	Status   Status
	Source   model.SourceKind
	Record   *model.ProfileRecord
}

// Found reports whether the outcome carries a record.
func (o *Outcome) Found() bool {
	return o.Status != StatusNotFound
}

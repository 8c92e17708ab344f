// Package syncjob refreshes stale cached profiles for every subject that
// carries a social handle, on a schedule or on demand.
package syncjob

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
	"github.com/creatorpulse/enrich-cli/internal/store"
)

// BatchResolver is the slice of the resolver the job needs.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, reqs []resolve.Request) (map[string]*resolve.Outcome, error)
}

// Stats summarizes one run.
type Stats struct {
	RunID           string        `json:"run_id"`
	TotalProfiles   int           `json:"total_profiles"`
	UpdatedProfiles int           `json:"updated_profiles"`
	SkippedProfiles int           `json:"skipped_profiles"`
	NotFound        int           `json:"not_found"`
	Errors          []string      `json:"errors"`
	Took            time.Duration `json:"took"`
}

// Job collects candidate handles, filters them by staleness, and resolves
// the remainder in fixed-size chunks with one paid call per chunk at most.
type Job struct {
	store    store.Store
	resolver BatchResolver

	chunkSize     int
	creatorWindow store.StaleWindow
	companyWindow store.StaleWindow
	chunkLimiter  *rate.Limiter
	now           func() time.Time
}

// Option configures the job.
type Option func(*Job)

// WithChunkSize overrides the default chunk size of 50.
func WithChunkSize(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.chunkSize = n
		}
	}
}

// WithWindows overrides the per-kind staleness windows.
func WithWindows(creator, company store.StaleWindow) Option {
	return func(j *Job) {
		j.creatorWindow = creator
		j.companyWindow = company
	}
}

// WithChunkLimiter replaces the pacing limiter between chunks.
func WithChunkLimiter(l *rate.Limiter) Option {
	return func(j *Job) {
		j.chunkLimiter = l
	}
}

// WithChunkDelay paces chunks at one per delay.
func WithChunkDelay(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.chunkLimiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithNow sets a fixed clock for testing.
func WithNow(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// New creates a sync job.
func New(st store.Store, resolver BatchResolver, opts ...Option) *Job {
	j := &Job{
		store:         st,
		resolver:      resolver,
		chunkSize:     50,
		creatorWindow: store.WindowDays(7),
		companyWindow: store.WindowDays(30),
		chunkLimiter:  rate.NewLimiter(rate.Every(3*time.Second), 1),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes one full sync pass. A chunk failure lands in Stats.Errors
// and the run continues; only candidate collection aborts the run.
func (j *Job) Run(ctx context.Context) (*Stats, error) {
	started := j.now()
	stats := &Stats{RunID: uuid.NewString(), Errors: []string{}}

	candidates, err := j.collectCandidates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "syncjob: collect candidates")
	}
	stats.TotalProfiles = len(candidates)

	zap.L().Info("sync run started",
		zap.String("run_id", stats.RunID),
		zap.Int("candidates", len(candidates)),
	)

	stale, err := j.filterStale(ctx, candidates)
	if err != nil {
		return nil, eris.Wrap(err, "syncjob: staleness filter")
	}
	stats.SkippedProfiles = len(candidates) - len(stale)

	for i, chunk := range chunkRequests(stale, j.chunkSize) {
		if i > 0 {
			if err := j.chunkLimiter.Wait(ctx); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				break
			}
		}

		outcomes, err := j.resolver.ResolveBatch(ctx, chunk)
		if err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			zap.L().Warn("sync chunk failed, continuing",
				zap.String("run_id", stats.RunID),
				zap.Int("chunk", i),
				zap.Error(err),
			)
		}
		for _, out := range outcomes {
			switch out.Status {
			case resolve.StatusResolved, resolve.StatusReused:
				stats.UpdatedProfiles++
			case resolve.StatusCached:
				stats.SkippedProfiles++
			case resolve.StatusNotFound:
				stats.NotFound++
			}
		}
	}

	stats.Took = j.now().Sub(started)
	zap.L().Info("sync run finished",
		zap.String("run_id", stats.RunID),
		zap.Int("total", stats.TotalProfiles),
		zap.Int("updated", stats.UpdatedProfiles),
		zap.Int("skipped", stats.SkippedProfiles),
		zap.Int("not_found", stats.NotFound),
		zap.Int("errors", len(stats.Errors)),
		zap.Duration("took", stats.Took),
	)
	return stats, nil
}

// collectCandidates gathers handles from every subject collection and
// deduplicates them case-insensitively after normalization. When the same
// handle appears under several subjects, the first keeps the subject
// binding.
func (j *Job) collectCandidates(ctx context.Context) ([]resolve.Request, error) {
	var all []store.SubjectHandle
	for _, list := range []func(context.Context) ([]store.SubjectHandle, error){
		j.store.ListCreatorHandles,
		j.store.ListCompanyHandles,
		j.store.ListCommunityHandles,
	} {
		handles, err := list(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, handles...)
	}

	seen := make(map[string]struct{}, len(all))
	var reqs []resolve.Request
	for _, h := range all {
		username := model.NormalizeUsername(h.Username)
		if username == "" {
			continue
		}
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}
		reqs = append(reqs, resolve.Request{
			Username:  username,
			Scope:     h.Scope,
			SubjectID: h.SubjectID,
			Platform:  model.PlatformInstagram,
		})
	}
	return reqs, nil
}

// filterStale keeps only candidates whose cache row is missing or past its
// scope's window. This is the gate that prevents re-paying for fresh data.
func (j *Job) filterStale(ctx context.Context, reqs []resolve.Request) ([]resolve.Request, error) {
	byWindow := map[store.StaleWindow][]resolve.Request{}
	for _, req := range reqs {
		byWindow[j.window(req.Scope)] = append(byWindow[j.window(req.Scope)], req)
	}

	staleSet := make(map[string]struct{})
	for window, group := range byWindow {
		usernames := make([]string, len(group))
		for i, req := range group {
			usernames[i] = req.Username
		}
		stale, err := j.store.ListStaleUsernames(ctx, usernames, window)
		if err != nil {
			return nil, err
		}
		for _, u := range stale {
			staleSet[u] = struct{}{}
		}
	}

	var out []resolve.Request
	for _, req := range reqs {
		if _, ok := staleSet[req.Username]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (j *Job) window(scope model.OwnerScope) store.StaleWindow {
	if scope == model.ScopeCompany {
		return j.companyWindow
	}
	return j.creatorWindow
}

func chunkRequests(reqs []resolve.Request, size int) [][]resolve.Request {
	if size <= 0 {
		size = 50
	}
	var chunks [][]resolve.Request
	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))
		chunks = append(chunks, reqs[start:end])
	}
	return chunks
}

package resolve

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/creatorpulse/enrich-cli/internal/model"
)

// ResolveBatch resolves many usernames with at most one paid run per
// platform, regardless of batch size. Free tiers run per username under
// bounded concurrency; everything still unresolved afterwards is collected
// into a single paid payload and demuxed on return.
//
// The returned map holds one outcome per distinct normalized username.
// A failed paid run is returned as an error alongside the outcomes of the
// usernames that did resolve; those left unresolved by the failure carry
// no entry.
func (r *Resolver) ResolveBatch(ctx context.Context, reqs []Request) (map[string]*Outcome, error) {
	start := time.Now()
	ordered := dedupeRequests(reqs)
	outcomes := make(map[string]*Outcome, len(ordered))

	// Cache partition: fresh complete rows short-circuit before any
	// outbound call.
	var pending []*pendingItem
	for _, req := range ordered {
		cached, err := r.store.GetProfile(ctx, req.Username, req.Scope)
		if err != nil {
			return nil, err
		}
		if r.freshComplete(cached) {
			outcomes[req.Username] = &Outcome{
				Username: req.Username,
				Status:   StatusCached,
				Source:   cached.Source,
				Record:   cached,
			}
			continue
		}
		pending = append(pending, &pendingItem{req: req, cached: cached})
	}

	// Free tiers, bounded fan-out. Tier failures are routine; the item
	// simply stays pending for the paid phase.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.freeConcurrency)
	for _, item := range pending {
		g.Go(func() error {
			for _, src := range r.free {
				if !src.Available(item.req) {
					continue
				}
				snap, err := src.Fetch(gctx, item.req)
				if err != nil {
					r.logTierFailure(src.Kind(), item.req.Username, err)
					continue
				}
				item.snap, item.kind = snap, src.Kind()
				return nil
			}
			return nil
		})
	}
	_ = g.Wait()

	// Paid phase: one run per platform for everything the free tiers
	// could not answer. A failed run strands only its own platform's
	// usernames; other platforms still get definitive answers.
	var paidErr error
	failedPlatforms := make(map[model.Platform]struct{})
	if unresolved := groupUnresolved(pending); len(unresolved) > 0 {
		for platform, items := range unresolved {
			if r.paid == nil || !r.paid.Available(Request{Platform: platform}) {
				continue
			}
			usernames := make([]string, len(items))
			for i, item := range items {
				usernames[i] = item.req.Username
			}
			results, err := r.paid.FetchBatch(ctx, platform, usernames)
			if err != nil {
				paidErr = eris.Wrapf(err, "resolve: paid batch for %s (%d usernames)", platform, len(usernames))
				failedPlatforms[platform] = struct{}{}
				zap.L().Error("paid batch failed", zap.String("platform", string(platform)), zap.Error(err))
				continue
			}
			for _, item := range items {
				if snap, ok := results[item.req.Username]; ok {
					s := snap
					item.snap, item.kind = &s, r.paid.Kind()
				}
			}
		}
	}

	// Write-through: merge and mirror every hit, then one bulk upsert.
	now := r.now()
	var recs []*model.ProfileRecord
	for _, item := range pending {
		if item.snap == nil {
			// An item stranded by its platform's failed run gets no entry;
			// an item every tier genuinely answered about is not_found.
			if _, failed := failedPlatforms[item.req.Platform]; !failed {
				outcomes[item.req.Username] = &Outcome{Username: item.req.Username, Status: StatusNotFound}
			}
			continue
		}
		rec := item.cached
		if rec == nil {
			rec = &model.ProfileRecord{
				Username: item.req.Username,
				Scope:    item.req.Scope,
				Platform: item.req.Platform,
			}
		}
		if rec.OwnerID == "" {
			rec.OwnerID = item.req.SubjectID
		}
		item.snap.Merge(rec, item.kind, now)
		r.mirrorImage(ctx, rec)
		recs = append(recs, rec)

		outcomes[item.req.Username] = &Outcome{
			Username: item.req.Username,
			Status:   statusFor(item.kind, item.snap),
			Source:   item.kind,
			Record:   rec,
		}
	}

	if len(recs) > 0 {
		if err := r.store.UpsertProfiles(ctx, recs); err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if err := r.store.UpdateSubjectSnapshot(ctx, rec); err != nil {
				return nil, err
			}
		}
	}

	logBatchSummary(len(ordered), outcomes, time.Since(start))
	return outcomes, paidErr
}

func dedupeRequests(reqs []Request) []Request {
	seen := make(map[string]struct{}, len(reqs))
	var out []Request
	for _, req := range reqs {
		req = req.normalized()
		if req.Username == "" {
			continue
		}
		if _, dup := seen[req.Username]; dup {
			continue
		}
		seen[req.Username] = struct{}{}
		out = append(out, req)
	}
	return out
}

// pendingItem tracks one username through the batch phases: its stale
// cache row (if any) and the snapshot of whichever tier answered.
type pendingItem struct {
	req    Request
	cached *model.ProfileRecord
	snap   *model.ProfileSnapshot
	kind   model.SourceKind
}

func groupUnresolved(pending []*pendingItem) map[model.Platform][]*pendingItem {
	grouped := make(map[model.Platform][]*pendingItem)
	for _, item := range pending {
		if item.snap != nil {
			continue
		}
		grouped[item.req.Platform] = append(grouped[item.req.Platform], item)
	}
	return grouped
}

func logBatchSummary(total int, outcomes map[string]*Outcome, took time.Duration) {
	counts := make(map[Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	zap.L().Info("batch resolution finished",
		zap.Int("total", total),
		zap.Int("cached", counts[StatusCached]),
		zap.Int("resolved", counts[StatusResolved]),
		zap.Int("reused", counts[StatusReused]),
		zap.Int("not_found", counts[StatusNotFound]),
		zap.Duration("took", took),
	)
}

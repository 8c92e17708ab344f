package resolve

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resilience"
	"github.com/creatorpulse/enrich-cli/pkg/apify"
)

// PaidSource is the paid scraper tier. Every run costs money, so it sits
// last in the chain, batches usernames into a single run wherever the
// caller can, and carries a breaker that stops paying a dead backend.
type PaidSource struct {
	client   apify.Client
	actors   map[model.Platform]string
	breaker  *resilience.TierBreaker
	wait     time.Duration
	pollOpts []apify.PollOption
}

// PaidOption configures the paid tier.
type PaidOption func(*PaidSource)

// WithBreaker replaces the default breaker.
func WithBreaker(b *resilience.TierBreaker) PaidOption {
	return func(s *PaidSource) {
		s.breaker = b
	}
}

// WithWait bounds how long one run may be polled.
func WithWait(d time.Duration) PaidOption {
	return func(s *PaidSource) {
		s.wait = d
	}
}

// WithPollOptions forwards polling options to the run poller.
func WithPollOptions(opts ...apify.PollOption) PaidOption {
	return func(s *PaidSource) {
		s.pollOpts = opts
	}
}

// NewPaidSource creates the paid tier. client may be nil when no scraper
// token is configured; the tier is then unavailable.
func NewPaidSource(client apify.Client, actors map[model.Platform]string, opts ...PaidOption) *PaidSource {
	s := &PaidSource{
		client:  client,
		actors:  actors,
		breaker: resilience.NewTierBreaker(5, 2*time.Minute),
		wait:    2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PaidSource) Kind() model.SourceKind {
	return model.SourcePaidScraper
}

func (s *PaidSource) Available(req Request) bool {
	if s.client == nil {
		return false
	}
	if _, ok := s.actors[req.Platform]; !ok {
		return false
	}
	return s.breaker.Allow()
}

// Fetch resolves a single username by running a one-item batch.
func (s *PaidSource) Fetch(ctx context.Context, req Request) (*model.ProfileSnapshot, error) {
	results, err := s.FetchBatch(ctx, req.Platform, []string{req.Username})
	if err != nil {
		return nil, err
	}
	snap, ok := results[req.Username]
	if !ok {
		return nil, ErrNoData
	}
	return &snap, nil
}

// FetchBatch runs the platform's actor once for all usernames and demuxes
// the dataset back by normalized username. Absent usernames are simply
// missing from the map.
func (s *PaidSource) FetchBatch(ctx context.Context, platform model.Platform, usernames []string) (map[string]model.ProfileSnapshot, error) {
	actorID, ok := s.actors[platform]
	if !ok {
		return nil, eris.Errorf("paid: no actor configured for platform %s", platform)
	}

	results, err := s.runActor(ctx, actorID, platform, usernames)
	s.breaker.Record(err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *PaidSource) runActor(ctx context.Context, actorID string, platform model.Platform, usernames []string) (map[string]model.ProfileSnapshot, error) {
	if s.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.wait)
		defer cancel()
	}

	run, err := s.client.StartRun(ctx, actorID, actorInput(platform, usernames))
	if err != nil {
		return nil, eris.Wrapf(err, "paid: start run %s", actorID)
	}

	zap.L().Info("paid scraper run started",
		zap.String("actor", actorID),
		zap.String("run_id", run.ID),
		zap.Int("usernames", len(usernames)),
	)

	run, err = apify.PollRun(ctx, s.client, run.ID, s.pollOpts...)
	if err != nil {
		return nil, eris.Wrapf(err, "paid: wait for run %s", run.ID)
	}

	var items []json.RawMessage
	if err := s.client.GetDatasetItems(ctx, run.DefaultDatasetID, &items); err != nil {
		return nil, eris.Wrapf(err, "paid: read dataset %s", run.DefaultDatasetID)
	}

	results := make(map[string]model.ProfileSnapshot, len(items))
	for _, item := range items {
		snap, err := decodeItem(platform, item)
		if err != nil {
			zap.L().Warn("paid scraper returned an undecodable item",
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
			continue
		}
		if snap.Username == "" {
			continue
		}
		results[snap.Username] = snap
	}
	return results, nil
}

func actorInput(platform model.Platform, usernames []string) any {
	switch platform {
	case model.PlatformTikTok:
		return map[string]any{"profiles": usernames}
	case model.PlatformYouTube:
		return map[string]any{"channelHandles": usernames}
	default:
		return map[string]any{"usernames": usernames}
	}
}

func decodeItem(platform model.Platform, item json.RawMessage) (model.ProfileSnapshot, error) {
	switch platform {
	case model.PlatformTikTok:
		var raw model.RawTikTokProfile
		if err := json.Unmarshal(item, &raw); err != nil {
			return model.ProfileSnapshot{}, eris.Wrap(err, "decode tiktok item")
		}
		return raw.Snapshot(), nil
	case model.PlatformYouTube:
		var raw model.RawYouTubeProfile
		if err := json.Unmarshal(item, &raw); err != nil {
			return model.ProfileSnapshot{}, eris.Wrap(err, "decode youtube item")
		}
		return raw.Snapshot(), nil
	default:
		var raw model.RawInstagramProfile
		if err := json.Unmarshal(item, &raw); err != nil {
			return model.ProfileSnapshot{}, eris.Wrap(err, "decode instagram item")
		}
		return raw.Snapshot(), nil
	}
}

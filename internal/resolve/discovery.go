package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resilience"
	"github.com/creatorpulse/enrich-cli/pkg/graph"
)

// DiscoverySource is the free business-discovery tier. It only knows
// Instagram business and creator accounts; everything else is ErrNoData.
type DiscoverySource struct {
	graph graph.Client
	retry resilience.RetryConfig
}

// NewDiscoverySource creates the discovery tier. graph may be nil when no
// connected account is configured; the tier is then unavailable.
func NewDiscoverySource(gc graph.Client) *DiscoverySource {
	retry := resilience.DefaultRetryConfig()
	retry.MaxBackoff = 5 * time.Second
	retry.OnRetry = resilience.RetryLogger("graph", "business_discovery")
	retry.ShouldRetry = func(err error) bool {
		var graphErr *graph.GraphError
		if errors.As(err, &graphErr) {
			return resilience.IsTransientHTTPStatus(graphErr.StatusCode)
		}
		return resilience.IsTransient(err)
	}
	return &DiscoverySource{graph: gc, retry: retry}
}

func (s *DiscoverySource) Kind() model.SourceKind {
	return model.SourceDiscovery
}

func (s *DiscoverySource) Available(req Request) bool {
	return s.graph != nil && req.Platform == model.PlatformInstagram
}

func (s *DiscoverySource) Fetch(ctx context.Context, req Request) (*model.ProfileSnapshot, error) {
	profile, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*graph.Profile, error) {
		return s.graph.BusinessDiscovery(ctx, req.Username)
	})
	if err != nil {
		if errors.Is(err, graph.ErrSelfLookup) {
			return nil, ErrNoData
		}
		var graphErr *graph.GraphError
		if errors.As(err, &graphErr) && graphErr.IsNotFound() {
			return nil, ErrNoData
		}
		return nil, eris.Wrapf(err, "discovery: lookup %s", req.Username)
	}

	snap := snapshotFromGraph(profile)
	if snap.Username == "" {
		snap.Username = req.Username
	}
	return &snap, nil
}

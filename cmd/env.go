package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorpulse/enrich-cli/internal/imagecache"
	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/queue"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
	"github.com/creatorpulse/enrich-cli/internal/store"
	"github.com/creatorpulse/enrich-cli/internal/syncjob"
	"github.com/creatorpulse/enrich-cli/pkg/apify"
	"github.com/creatorpulse/enrich-cli/pkg/graph"
	"github.com/creatorpulse/enrich-cli/pkg/storage"
)

// env bundles the wired subsystems a command needs.
type env struct {
	Store    store.Store
	Resolver *resolve.Resolver
	Job      *syncjob.Job
	Queue    *queue.Queue
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "enrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the full pipeline. Tiers without credentials are simply
// absent from the chain; the resolver skips them.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var graphClient graph.Client
	if cfg.Graph.AccessToken != "" && cfg.Graph.ActingAccountID != "" {
		opts := []graph.Option{}
		if cfg.Graph.BaseURL != "" {
			opts = append(opts, graph.WithBaseURL(cfg.Graph.BaseURL))
		}
		graphClient = graph.NewClient(cfg.Graph.AccessToken, cfg.Graph.ActingAccountID, cfg.Graph.ActingUsername, opts...)
	}

	var paid *resolve.PaidSource
	if cfg.Apify.Token != "" {
		apifyOpts := []apify.Option{}
		if cfg.Apify.BaseURL != "" {
			apifyOpts = append(apifyOpts, apify.WithBaseURL(cfg.Apify.BaseURL))
		}
		client := apify.NewClient(cfg.Apify.Token, apifyOpts...)
		paid = resolve.NewPaidSource(client, map[model.Platform]string{
			model.PlatformInstagram: cfg.Apify.InstagramActor,
			model.PlatformTikTok:    cfg.Apify.TikTokActor,
			model.PlatformYouTube:   cfg.Apify.YouTubeActor,
		}, resolve.WithWait(time.Duration(cfg.Apify.WaitSecs)*time.Second))
	}

	resolverOpts := []resolve.Option{
		resolve.WithStaleWindow(model.ScopeCreator, store.WindowDays(cfg.Sync.CreatorMaxAgeDays)),
		resolve.WithStaleWindow(model.ScopeExternal, store.WindowDays(cfg.Sync.CreatorMaxAgeDays)),
		resolve.WithStaleWindow(model.ScopeCompany, store.WindowDays(cfg.Sync.CompanyMaxAgeDays)),
		resolve.WithFreeConcurrency(cfg.Sync.FreeConcurrency),
	}
	if cfg.Storage.BaseURL != "" {
		blobOpts := []storage.Option{}
		if cfg.Storage.PublicBaseURL != "" {
			blobOpts = append(blobOpts, storage.WithPublicBaseURL(cfg.Storage.PublicBaseURL))
		}
		if cfg.Storage.Bucket != "" {
			blobOpts = append(blobOpts, storage.WithBucket(cfg.Storage.Bucket))
		}
		blobs := storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.Token, blobOpts...)
		images := imagecache.New(blobs, imagecache.Options{
			MinSizeBytes: int64(cfg.Image.MinSizeBytes),
			Timeout:      time.Duration(cfg.Image.TimeoutSecs) * time.Second,
			Collection:   cfg.Image.Collection,
		})
		resolverOpts = append(resolverOpts, resolve.WithImages(images))
	}

	free := []resolve.Source{
		resolve.NewOwnedSource(st, graphClient, model.NormalizeUsername(cfg.Graph.ActingUsername)),
		resolve.NewDiscoverySource(graphClient),
	}
	var paidTier resolve.BatchSource
	if paid != nil {
		paidTier = paid
	}
	resolver := resolve.NewResolver(st, free, paidTier, resolverOpts...)

	job := syncjob.New(st, resolver,
		syncjob.WithChunkSize(cfg.Sync.ChunkSize),
		syncjob.WithChunkDelay(time.Duration(cfg.Sync.ChunkDelaySecs)*time.Second),
		syncjob.WithWindows(
			store.WindowDays(cfg.Sync.CreatorMaxAgeDays),
			store.WindowDays(cfg.Sync.CompanyMaxAgeDays),
		),
	)

	q := queue.New(resolver,
		queue.WithItemDelay(time.Duration(cfg.Queue.ItemDelayMillis)*time.Millisecond),
	)

	return &env{Store: st, Resolver: resolver, Job: job, Queue: q}, nil
}

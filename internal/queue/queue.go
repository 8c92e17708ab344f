// Package queue holds the in-process enrichment queue: many producers
// enqueue subjects whose handles changed, one background drain resolves
// them sequentially under a rate limit.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
)

// ItemResolver resolves a single username. Implemented by resolve.Resolver.
type ItemResolver interface {
	Resolve(ctx context.Context, req resolve.Request) (*resolve.Outcome, error)
}

// Item is one queued enrichment request.
type Item struct {
	SubjectID string
	Username  string
	Scope     model.OwnerScope
	Platform  model.Platform
}

// Queue is a single-flight FIFO: items are processed strictly in arrival
// order, one at a time, paced by the limiter. Enqueueing a subject already
// pending is a no-op. A failed item is logged and dropped; the scheduled
// sync is the retry mechanism.
type Queue struct {
	mu      sync.Mutex
	pending []Item
	queued  map[string]struct{}
	busy    bool
	wg      sync.WaitGroup

	resolver ItemResolver
	limiter  *rate.Limiter
}

// Option configures the queue.
type Option func(*Queue)

// WithLimiter replaces the default inter-item pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(q *Queue) {
		q.limiter = l
	}
}

// WithItemDelay paces the drain at one item per delay.
func WithItemDelay(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// New creates an idle queue; the drain starts with the first enqueue.
func New(resolver ItemResolver, opts ...Option) *Queue {
	q := &Queue{
		resolver: resolver,
		queued:   make(map[string]struct{}),
		limiter:  rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends the item unless its subject is already pending. Returns
// whether the item was accepted. The drain goroutine is started lazily and
// exits when the queue empties.
func (q *Queue) Enqueue(ctx context.Context, item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.queued[item.SubjectID]; dup {
		zap.L().Debug("subject already queued, skipping",
			zap.String("subject_id", item.SubjectID),
		)
		return false
	}
	q.pending = append(q.pending, item)
	q.queued[item.SubjectID] = struct{}{}

	if !q.busy {
		q.busy = true
		q.wg.Add(1)
		go q.drain(ctx)
	}
	return true
}

// Len returns the number of items still pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until the current drain (if any) finishes.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) drain(ctx context.Context) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 || ctx.Err() != nil {
			if n := len(q.pending); n > 0 {
				zap.L().Warn("queue drain cancelled with items pending", zap.Int("dropped", n))
				q.pending = nil
				q.queued = make(map[string]struct{})
			}
			q.busy = false
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.process(ctx, item)

		// The subject stays in the dedupe set until its processing pass
		// finishes, so a double enqueue collapses to one pass.
		q.mu.Lock()
		delete(q.queued, item.SubjectID)
		q.mu.Unlock()
	}
}

func (q *Queue) process(ctx context.Context, item Item) {
	if err := q.limiter.Wait(ctx); err != nil {
		return
	}

	out, err := q.resolver.Resolve(ctx, resolve.Request{
		Username:  item.Username,
		Scope:     item.Scope,
		SubjectID: item.SubjectID,
		Platform:  item.Platform,
	})
	if err != nil {
		zap.L().Warn("queued enrichment failed, dropping item",
			zap.String("subject_id", item.SubjectID),
			zap.String("username", item.Username),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("queued enrichment processed",
		zap.String("subject_id", item.SubjectID),
		zap.String("username", out.Username),
		zap.String("status", string(out.Status)),
	)
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/queue"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
	"github.com/creatorpulse/enrich-cli/internal/syncjob"
)

type fakeItemResolver struct {
	outcome *resolve.Outcome
	err     error

	mu   sync.Mutex
	reqs []resolve.Request
}

func (f *fakeItemResolver) Resolve(_ context.Context, req resolve.Request) (*resolve.Outcome, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &resolve.Outcome{Username: req.Username, Status: resolve.StatusNotFound}, nil
}

func (f *fakeItemResolver) requests() []resolve.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resolve.Request(nil), f.reqs...)
}

type fakeRunner struct {
	stats *syncjob.Stats
	err   error
}

func (f *fakeRunner) Run(context.Context) (*syncjob.Stats, error) {
	return f.stats, f.err
}

func testDeps(resolver *fakeItemResolver, job syncjob.Runner) serverDeps {
	return serverDeps{
		resolver: resolver,
		job:      job,
		queue:    queue.New(resolver, queue.WithLimiter(rate.NewLimiter(rate.Inf, 1))),
	}
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(testDeps(&fakeItemResolver{}, &fakeRunner{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouter_ProfileFound(t *testing.T) {
	resolver := &fakeItemResolver{
		outcome: &resolve.Outcome{
			Username: "janedoe",
			Status:   resolve.StatusCached,
			Source:   model.SourceDiscovery,
			Record: &model.ProfileRecord{
				Username:  "janedoe",
				Scope:     model.ScopeCreator,
				Followers: model.Ptr(int64(1200)),
			},
		},
	}
	router := newRouter(testDeps(resolver, &fakeRunner{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/janedoe?scope=creator", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Status":"cached"`)

	reqs := resolver.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "janedoe", reqs[0].Username)
	assert.Equal(t, model.ScopeCreator, reqs[0].Scope)
}

func TestRouter_ProfileNotFound(t *testing.T) {
	router := newRouter(testDeps(&fakeItemResolver{}, &fakeRunner{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ProfileError(t *testing.T) {
	resolver := &fakeItemResolver{err: eris.New("store down")}
	router := newRouter(testDeps(resolver, &fakeRunner{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/janedoe", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_ManualSync(t *testing.T) {
	job := &fakeRunner{stats: &syncjob.Stats{TotalProfiles: 12, UpdatedProfiles: 5}}
	router := newRouter(testDeps(&fakeItemResolver{}, job))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/manual", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_profiles":12`)
}

func TestRouter_ManualSyncError(t *testing.T) {
	job := &fakeRunner{err: eris.New("resolver unavailable")}
	router := newRouter(testDeps(&fakeItemResolver{}, job))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/manual", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_Enqueue(t *testing.T) {
	resolver := &fakeItemResolver{}
	deps := testDeps(resolver, &fakeRunner{})
	router := newRouter(deps)

	body := `{"subject_id":"c1","username":"janedoe","scope":"creator"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enqueue", strings.NewReader(body)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":true`)

	deps.queue.Wait()
	reqs := resolver.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "c1", reqs[0].SubjectID)
}

func TestRouter_EnqueueValidation(t *testing.T) {
	router := newRouter(testDeps(&fakeItemResolver{}, &fakeRunner{}))

	for _, body := range []string{
		`not json`,
		`{"username":"janedoe"}`,
		`{"subject_id":"c1"}`,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enqueue", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRouter_EnqueueOutlivesRequest(t *testing.T) {
	resolver := &fakeItemResolver{}
	deps := testDeps(resolver, &fakeRunner{})
	router := newRouter(deps)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/enqueue",
		strings.NewReader(`{"subject_id":"c1","username":"janedoe"}`)).WithContext(ctx)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	cancel()

	assert.Equal(t, http.StatusAccepted, rec.Code)

	deadline := time.After(2 * time.Second)
	for len(resolver.requests()) == 0 {
		select {
		case <-deadline:
			t.Fatal("queued item never processed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

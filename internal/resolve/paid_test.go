package resolve

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resilience"
	"github.com/creatorpulse/enrich-cli/pkg/apify"
)

// fakeApify returns a succeeded run and canned dataset items.
type fakeApify struct {
	items     []any
	startErr  error
	startedIn []any
	runs      int
}

func (f *fakeApify) StartRun(_ context.Context, _ string, input any) (*apify.Run, error) {
	f.runs++
	f.startedIn = append(f.startedIn, input)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &apify.Run{ID: "run-1", Status: apify.StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
}

func (f *fakeApify) GetRun(context.Context, string) (*apify.Run, error) {
	return &apify.Run{ID: "run-1", Status: apify.StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
}

func (f *fakeApify) GetDatasetItems(_ context.Context, _ string, out any) error {
	data, err := json.Marshal(f.items)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func defaultActors() map[model.Platform]string {
	return map[model.Platform]string{
		model.PlatformInstagram: "apify~instagram-profile-scraper",
		model.PlatformTikTok:    "clockworks~tiktok-profile-scraper",
	}
}

func TestPaidSource_FetchBatch(t *testing.T) {
	client := &fakeApify{items: []any{
		model.RawInstagramProfile{Username: "JaneDoe", FollowersCount: 1200, ProfilePicURL: "https://cdn/x.jpg"},
		model.RawInstagramProfile{Username: "acme", FollowersCount: 90, Private: true},
	}}
	src := NewPaidSource(client, defaultActors())

	results, err := src.FetchBatch(context.Background(), model.PlatformInstagram, []string{"janedoe", "acme"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	jane := results["janedoe"]
	assert.Equal(t, int64(1200), *jane.Followers)
	assert.Equal(t, "https://cdn/x.jpg", *jane.ProfilePicURL)
	assert.True(t, *results["acme"].IsPrivate)
	assert.Equal(t, 1, client.runs)

	input, ok := client.startedIn[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"janedoe", "acme"}, input["usernames"])
}

func TestPaidSource_Fetch_MissingUsername(t *testing.T) {
	client := &fakeApify{items: []any{}}
	src := NewPaidSource(client, defaultActors())

	_, err := src.Fetch(context.Background(), Request{Username: "ghost", Platform: model.PlatformInstagram})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPaidSource_UnconfiguredPlatform(t *testing.T) {
	src := NewPaidSource(&fakeApify{}, defaultActors())
	assert.False(t, src.Available(Request{Platform: model.PlatformYouTube}))
	assert.True(t, src.Available(Request{Platform: model.PlatformInstagram}))
}

func TestPaidSource_NilClientUnavailable(t *testing.T) {
	src := NewPaidSource(nil, defaultActors())
	assert.False(t, src.Available(Request{Platform: model.PlatformInstagram}))
}

func TestPaidSource_BreakerOpensAfterFailures(t *testing.T) {
	client := &fakeApify{startErr: assert.AnError}
	breaker := resilience.NewTierBreaker(2, time.Hour)
	src := NewPaidSource(client, defaultActors(), WithBreaker(breaker))

	req := Request{Username: "janedoe", Platform: model.PlatformInstagram}
	for range 2 {
		require.True(t, src.Available(req))
		_, err := src.Fetch(context.Background(), req)
		require.Error(t, err)
	}
	assert.False(t, src.Available(req), "breaker must open after consecutive failures")
}

func TestActorInput_PerPlatform(t *testing.T) {
	ig := actorInput(model.PlatformInstagram, []string{"a"}).(map[string]any)
	assert.Contains(t, ig, "usernames")

	tk := actorInput(model.PlatformTikTok, []string{"a"}).(map[string]any)
	assert.Contains(t, tk, "profiles")

	yt := actorInput(model.PlatformYouTube, []string{"a"}).(map[string]any)
	assert.Contains(t, yt, "channelHandles")
}

func TestDecodeItem_TikTok(t *testing.T) {
	raw, err := json.Marshal(model.RawTikTokProfile{UniqueID: "JaneDoe", Fans: 9000, Nickname: "Jane"})
	require.NoError(t, err)

	snap, err := decodeItem(model.PlatformTikTok, raw)
	require.NoError(t, err)
	assert.Equal(t, "janedoe", snap.Username)
	assert.Equal(t, model.PlatformTikTok, snap.Platform)
	assert.Equal(t, int64(9000), *snap.Followers)
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"JaneDoe":                                  "janedoe",
		"@JaneDoe":                                 "janedoe",
		"  @janedoe  ":                             "janedoe",
		"https://www.instagram.com/JaneDoe/":       "janedoe",
		"https://instagram.com/janedoe?hl=en":      "janedoe",
		"instagram.com/janedoe/reels":              "janedoe",
		"https://www.tiktok.com/@janedoe":          "janedoe",
		"":                                         "",
		"@":                                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeUsername(in), "input %q", in)
	}
}

func TestNormalizeUsernames_DedupesCaseInsensitively(t *testing.T) {
	out := NormalizeUsernames([]string{"@JaneDoe", "janedoe", "JANEDOE", "", "other"})
	assert.Equal(t, []string{"janedoe", "other"}, out)
}

func TestMerge_NonNilWins(t *testing.T) {
	rec := &ProfileRecord{Username: "janedoe", Scope: ScopeExternal}
	now := time.Now().UTC()

	first := ProfileSnapshot{Bio: Ptr("hello"), Platform: PlatformInstagram}
	first.Merge(rec, SourceDiscovery, now)

	assert.Equal(t, "hello", *rec.Bio)
	assert.Equal(t, SourceDiscovery, rec.Source)

	// A later tier with no bio must not regress the stored bio.
	second := ProfileSnapshot{Followers: Ptr(int64(1200))}
	second.Merge(rec, SourcePaidScraper, now)

	assert.Equal(t, "hello", *rec.Bio)
	assert.Equal(t, int64(1200), *rec.Followers)
	assert.Equal(t, SourcePaidScraper, rec.Source)
}

func TestMerge_SetsFetchTimeAndProvenance(t *testing.T) {
	rec := &ProfileRecord{Username: "janedoe"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := ProfileSnapshot{IsVerified: Ptr(true)}
	snap.Merge(rec, SourcePaidScraper, now)

	assert.True(t, rec.IsVerified)
	assert.Equal(t, now, rec.LastFetchedAt)
	assert.Equal(t, SourcePaidScraper, rec.Source)
}

func TestEnrichmentScore(t *testing.T) {
	var nilRec *ProfileRecord
	assert.Equal(t, 0, nilRec.EnrichmentScore())

	rec := &ProfileRecord{}
	assert.Equal(t, 0, rec.EnrichmentScore())

	rec.Followers = Ptr(int64(10))
	rec.Following = Ptr(int64(5))
	rec.PostsCount = Ptr(int64(3))
	rec.FullName = Ptr("Jane Doe")
	rec.Bio = Ptr("hi")
	rec.ProfilePicStoragePath = Ptr("profile-pics/janedoe.jpg")
	assert.Equal(t, 100, rec.EnrichmentScore())
}

func TestRawSnapshots(t *testing.T) {
	ig := RawInstagramProfile{
		Username: "@JaneDoe", FullName: "Jane", Biography: "bio",
		FollowersCount: 100, FollowsCount: 50, PostsCount: 10,
		ProfilePicURL: "https://cdn/x.jpg", Verified: true,
	}
	snap := ig.Snapshot()
	assert.Equal(t, "janedoe", snap.Username)
	assert.Equal(t, PlatformInstagram, snap.Platform)
	assert.Equal(t, int64(100), *snap.Followers)
	assert.True(t, *snap.IsVerified)

	tk := RawTikTokProfile{UniqueID: "janedoe", Fans: 7, AvatarURL: ""}
	tsnap := tk.Snapshot()
	assert.Equal(t, PlatformTikTok, tsnap.Platform)
	assert.Nil(t, tsnap.ProfilePicURL)

	yt := RawYouTubeProfile{ChannelHandle: "@JaneDoe", SubscriberCount: 3}
	ysnap := yt.Snapshot()
	assert.Equal(t, "janedoe", ysnap.Username)
	assert.Nil(t, ysnap.IsPrivate)
}

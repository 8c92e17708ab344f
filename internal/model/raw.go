package model

// Raw result shapes returned by the paid scraper backend. Each platform's
// actor emits a distinct schema; the mapping functions below normalize all
// of them into the common ProfileSnapshot so merge and staleness logic
// stay source-agnostic.

// RawInstagramProfile is one dataset item from the Instagram profile actor.
type RawInstagramProfile struct {
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	Biography      string `json:"biography"`
	FollowersCount int64  `json:"followersCount"`
	FollowsCount   int64  `json:"followsCount"`
	PostsCount     int64  `json:"postsCount"`
	ProfilePicURL  string `json:"profilePicUrlHD"`
	Verified       bool   `json:"verified"`
	Private        bool   `json:"private"`
}

// RawTikTokProfile is one dataset item from the TikTok profile actor.
type RawTikTokProfile struct {
	UniqueID       string `json:"uniqueId"`
	Nickname       string `json:"nickname"`
	Signature      string `json:"signature"`
	Fans           int64  `json:"fans"`
	Following      int64  `json:"following"`
	VideoCount     int64  `json:"video"`
	AvatarURL      string `json:"avatarLarger"`
	Verified       bool   `json:"verified"`
	PrivateAccount bool   `json:"privateAccount"`
}

// RawYouTubeProfile is one dataset item from the YouTube channel actor.
type RawYouTubeProfile struct {
	ChannelHandle   string `json:"channelHandle"`
	ChannelName     string `json:"channelName"`
	Description     string `json:"channelDescription"`
	SubscriberCount int64  `json:"numberOfSubscribers"`
	VideoCount      int64  `json:"numberOfVideos"`
	AvatarURL       string `json:"channelAvatarUrl"`
	IsVerified      bool   `json:"isChannelVerified"`
}

// Snapshot maps the Instagram actor schema into the canonical shape.
func (r RawInstagramProfile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		Username:      NormalizeUsername(r.Username),
		Platform:      PlatformInstagram,
		Followers:     Ptr(r.FollowersCount),
		Following:     Ptr(r.FollowsCount),
		PostsCount:    Ptr(r.PostsCount),
		FullName:      nonEmpty(r.FullName),
		Bio:           nonEmpty(r.Biography),
		ProfilePicURL: nonEmpty(r.ProfilePicURL),
		IsVerified:    Ptr(r.Verified),
		IsPrivate:     Ptr(r.Private),
	}
}

// Snapshot maps the TikTok actor schema into the canonical shape.
func (r RawTikTokProfile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		Username:      NormalizeUsername(r.UniqueID),
		Platform:      PlatformTikTok,
		Followers:     Ptr(r.Fans),
		Following:     Ptr(r.Following),
		PostsCount:    Ptr(r.VideoCount),
		FullName:      nonEmpty(r.Nickname),
		Bio:           nonEmpty(r.Signature),
		ProfilePicURL: nonEmpty(r.AvatarURL),
		IsVerified:    Ptr(r.Verified),
		IsPrivate:     Ptr(r.PrivateAccount),
	}
}

// Snapshot maps the YouTube actor schema into the canonical shape. YouTube
// has no private-account flag, so IsPrivate stays unknown.
func (r RawYouTubeProfile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		Username:      NormalizeUsername(r.ChannelHandle),
		Platform:      PlatformYouTube,
		Followers:     Ptr(r.SubscriberCount),
		PostsCount:    Ptr(r.VideoCount),
		FullName:      nonEmpty(r.ChannelName),
		Bio:           nonEmpty(r.Description),
		ProfilePicURL: nonEmpty(r.AvatarURL),
		IsVerified:    Ptr(r.IsVerified),
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package domain

import "time"

// AssetStatus is the lifecycle of an externally generated asset or reel.
type AssetStatus string

const (
	StatusProcessing AssetStatus = "PROCESSING"
	StatusCompleted  AssetStatus = "COMPLETED"
	StatusFailed     AssetStatus = "FAILED"
)

// AssetType classifies generated media.
type AssetType string

const (
	AssetTypeMP3   AssetType = "mp3"
	AssetTypeMP4   AssetType = "mp4"
	AssetTypeImage AssetType = "image"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Channel is a point-in-time cache of a connected YouTube channel. Stats are
// captured at connect time and are not kept live-synced.
type Channel struct {
	UserID          string    `json:"-"`
	ChannelID       string    `json:"channelId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Thumbnail       string    `json:"thumbnail,omitempty"`
	SubscriberCount string    `json:"subscriberCount"`
	VideoCount      string    `json:"videoCount"`
	ViewCount       string    `json:"viewCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type VideoIdea struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channelId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Script      string    `json:"script,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Asset is a generated media record correlated to an external agent job via
// GeneratorID. URL stays empty until the out-of-band completion arrives.
// ObjectKey is set once the media is archived into our bucket; reads presign
// it into a fresh URL, so the stored URL is only the agent-side fallback.
type Asset struct {
	ID          string      `json:"id"`
	ChannelID   string      `json:"channelId"`
	GeneratorID string      `json:"generatorId"`
	Status      AssetStatus `json:"status"`
	URL         string      `json:"url,omitempty"`
	ObjectKey   string      `json:"-"`
	AssetType   AssetType   `json:"assetType"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type Reel struct {
	ID          string      `json:"id"`
	ChannelID   string      `json:"channelId"`
	GeneratorID string      `json:"generatorId"`
	Status      AssetStatus `json:"status"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	VideoIdeaID string      `json:"videoIdeaId,omitempty"`
	VideoIdea   *IdeaSummary `json:"videoIdea,omitempty"`
	Assets      []ReelAsset `json:"reelAssets"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// IdeaSummary is the slice of a video idea embedded in reel listings.
type IdeaSummary struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ReelAsset struct {
	ID          string      `json:"id"`
	ReelID      string      `json:"-"`
	GeneratorID string      `json:"generatorId"`
	Status      AssetStatus `json:"status"`
	URL         string      `json:"url,omitempty"`
	AssetType   AssetType   `json:"assetType"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ChannelInfo is YouTube channel metadata as returned by the Data API, used
// for search results and connect-time snapshots.
type ChannelInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	SubscriberCount string `json:"subscriberCount"`
	VideoCount      string `json:"videoCount"`
	ViewCount       string `json:"viewCount"`
}

package store

import "creatorhub/pkg/domain"

// Store defines persistence operations for users, channels, ideas, reels,
// and generated assets.
type Store interface {
	// users
	UpsertUser(domain.User) (domain.User, error)
	GetUserByID(id string) (domain.User, bool, error)
	// AdjustCredits applies a signed delta to the user's balance atomically
	// and returns the post-adjustment value. It satisfies credits.BalanceStore.
	AdjustCredits(userID string, delta int) (int, error)

	// channels
	CreateChannel(domain.Channel) error
	GetUserChannel(userID, channelID string) (domain.Channel, bool, error)
	ListChannelsByUser(userID string) ([]domain.Channel, error)

	// video ideas
	CreateIdea(domain.VideoIdea) error
	GetIdea(id string) (domain.VideoIdea, bool, error)
	ListIdeasByChannel(channelID string) ([]domain.VideoIdea, error)
	UpdateIdea(domain.VideoIdea) error
	SetIdeaTags(id, tags string) error
	DeleteIdea(id string) error

	// generated assets
	CreateAsset(asset domain.Asset, agentPayload []byte) error
	GetAssetByGeneratorID(generatorID string) (domain.Asset, bool, error)
	ListAssetsByChannel(channelID string) ([]domain.Asset, error)
	CompleteAsset(generatorID string, status domain.AssetStatus, url, objectKey string) error

	// reels
	CreateReel(reel domain.Reel, assets []domain.ReelAsset) error
	ListReelsByChannel(channelID string) ([]domain.Reel, error)
}

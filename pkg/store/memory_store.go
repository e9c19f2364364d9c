package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"creatorhub/pkg/credits"
	"creatorhub/pkg/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	channels   []domain.Channel
	ideas      map[string]domain.VideoIdea
	assets     map[string]domain.Asset // keyed by generator id
	reels      map[string]domain.Reel
	reelAssets map[string][]domain.ReelAsset // keyed by reel id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		ideas:      make(map[string]domain.VideoIdea),
		assets:     make(map[string]domain.Asset),
		reels:      make(map[string]domain.Reel),
		reelAssets: make(map[string][]domain.ReelAsset),
	}
}

func (s *MemoryStore) UpsertUser(u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := s.users[u.ID]
	if ok {
		existing.Name = u.Name
		existing.Email = u.Email
		existing.ImageURL = u.ImageURL
		existing.UpdatedAt = now
		s.users[u.ID] = existing
		return existing, nil
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) AdjustCredits(userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, credits.ErrUserNotFound
	}
	u.Credits += delta
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return u.Credits, nil
}

func (s *MemoryStore) CreateChannel(c domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.channels {
		if existing.UserID == c.UserID && existing.ChannelID == c.ChannelID {
			return fmt.Errorf("channel %s already connected for user %s", c.ChannelID, c.UserID)
		}
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.channels = append(s.channels, c)
	return nil
}

func (s *MemoryStore) GetUserChannel(userID, channelID string) (domain.Channel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.channels {
		if c.UserID == userID && c.ChannelID == channelID {
			return c, true, nil
		}
	}
	return domain.Channel{}, false, nil
}

func (s *MemoryStore) ListChannelsByUser(userID string) ([]domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Channel
	for _, c := range s.channels {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) CreateIdea(idea domain.VideoIdea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = now
	}
	idea.UpdatedAt = now
	s.ideas[idea.ID] = idea
	return nil
}

func (s *MemoryStore) GetIdea(id string) (domain.VideoIdea, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idea, ok := s.ideas[id]
	return idea, ok, nil
}

func (s *MemoryStore) ListIdeasByChannel(channelID string) ([]domain.VideoIdea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.VideoIdea
	for _, idea := range s.ideas {
		if idea.ChannelID == channelID {
			res = append(res, idea)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) UpdateIdea(idea domain.VideoIdea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.ideas[idea.ID]
	if !ok {
		return fmt.Errorf("idea %s not found", idea.ID)
	}
	existing.Title = idea.Title
	existing.Description = idea.Description
	existing.Script = idea.Script
	existing.Plan = idea.Plan
	existing.Tags = idea.Tags
	existing.UpdatedAt = time.Now().UTC()
	s.ideas[idea.ID] = existing
	return nil
}

func (s *MemoryStore) SetIdeaTags(id, tags string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.ideas[id]
	if !ok {
		return fmt.Errorf("idea %s not found", id)
	}
	existing.Tags = tags
	existing.UpdatedAt = time.Now().UTC()
	s.ideas[id] = existing
	return nil
}

func (s *MemoryStore) DeleteIdea(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ideas, id)
	return nil
}

func (s *MemoryStore) CreateAsset(asset domain.Asset, agentPayload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[asset.GeneratorID]; exists {
		return fmt.Errorf("asset with generator id %s already exists", asset.GeneratorID)
	}
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now
	s.assets[asset.GeneratorID] = asset
	return nil
}

func (s *MemoryStore) GetAssetByGeneratorID(generatorID string) (domain.Asset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[generatorID]
	return asset, ok, nil
}

func (s *MemoryStore) ListAssetsByChannel(channelID string) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Asset
	for _, asset := range s.assets {
		if asset.ChannelID == channelID {
			res = append(res, asset)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) CompleteAsset(generatorID string, status domain.AssetStatus, url, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[generatorID]
	if !ok {
		return fmt.Errorf("asset with generator id %s not found", generatorID)
	}
	asset.Status = status
	asset.URL = url
	asset.ObjectKey = objectKey
	asset.UpdatedAt = time.Now().UTC()
	s.assets[generatorID] = asset
	return nil
}

func (s *MemoryStore) CreateReel(reel domain.Reel, assets []domain.ReelAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if reel.CreatedAt.IsZero() {
		reel.CreatedAt = now
	}
	reel.UpdatedAt = now
	s.reels[reel.ID] = reel
	for i := range assets {
		assets[i].ReelID = reel.ID
		if assets[i].CreatedAt.IsZero() {
			assets[i].CreatedAt = now
		}
		assets[i].UpdatedAt = now
	}
	s.reelAssets[reel.ID] = append(s.reelAssets[reel.ID], assets...)
	return nil
}

func (s *MemoryStore) ListReelsByChannel(channelID string) ([]domain.Reel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Reel
	for _, reel := range s.reels {
		if reel.ChannelID != channelID {
			continue
		}
		reel.Assets = append([]domain.ReelAsset(nil), s.reelAssets[reel.ID]...)
		if reel.VideoIdeaID != "" {
			if idea, ok := s.ideas[reel.VideoIdeaID]; ok {
				reel.VideoIdea = &domain.IdeaSummary{Title: idea.Title, Description: idea.Description}
			}
		}
		res = append(res, reel)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creatorhub/pkg/domain"
	"creatorhub/pkg/youtube"
)

// ChannelOverview is the onboarding state of the caller: their connected
// channels, or suggestions pulled from their Google account when none are
// connected yet.
type ChannelOverview struct {
	HasChannels         bool                 `json:"hasChannels"`
	Channels            []domain.Channel     `json:"channels,omitempty"`
	Suggestions         []domain.ChannelInfo `json:"suggestions"`
	RequiresGoogleOAuth bool                 `json:"requiresGoogleOAuth"`
}

// CheckChannels reports the caller's connected channels. When none exist and a
// Google OAuth token is supplied, the caller's own YouTube channels are offered
// as suggestions; without a token the client is told to link Google first.
func (a *App) CheckChannels(ctx context.Context, userID, googleToken string) (ChannelOverview, error) {
	channels, err := a.store.ListChannelsByUser(userID)
	if err != nil {
		return ChannelOverview{}, fmt.Errorf("list channels: %w", err)
	}
	if len(channels) > 0 {
		return ChannelOverview{HasChannels: true, Channels: channels, Suggestions: []domain.ChannelInfo{}}, nil
	}
	if strings.TrimSpace(googleToken) == "" {
		return ChannelOverview{Suggestions: []domain.ChannelInfo{}, RequiresGoogleOAuth: true}, nil
	}
	suggestions, err := a.youtube.ListMyChannels(ctx, googleToken)
	if err != nil {
		return ChannelOverview{}, fmt.Errorf("list own channels: %w", err)
	}
	if suggestions == nil {
		suggestions = []domain.ChannelInfo{}
	}
	return ChannelOverview{Suggestions: suggestions}, nil
}

// ConnectChannel snapshots the channel's metadata and links it to the user.
// Reconnecting an already-linked channel returns the existing record with
// created=false; the cached stats are not refreshed.
func (a *App) ConnectChannel(ctx context.Context, userID, channelID string) (domain.Channel, bool, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return domain.Channel{}, false, fmt.Errorf("%w: channel id required", ErrInvalidInput)
	}
	if existing, ok, err := a.store.GetUserChannel(userID, channelID); err != nil {
		return domain.Channel{}, false, fmt.Errorf("check channel: %w", err)
	} else if ok {
		return existing, false, nil
	}
	info, err := a.youtube.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, youtube.ErrChannelNotFound) {
			return domain.Channel{}, false, ErrChannelNotFound
		}
		return domain.Channel{}, false, fmt.Errorf("lookup channel: %w", err)
	}
	channel := domain.Channel{
		UserID:          userID,
		ChannelID:       info.ID,
		Title:           info.Title,
		Description:     info.Description,
		Thumbnail:       info.Thumbnail,
		SubscriberCount: info.SubscriberCount,
		VideoCount:      info.VideoCount,
		ViewCount:       info.ViewCount,
	}
	if err := a.store.CreateChannel(channel); err != nil {
		return domain.Channel{}, false, fmt.Errorf("connect channel: %w", err)
	}
	stored, ok, err := a.store.GetUserChannel(userID, info.ID)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("channel missing after connect")
		}
		return domain.Channel{}, false, err
	}
	return stored, true, nil
}

// MyChannels lists the caller's connected channels.
func (a *App) MyChannels(ctx context.Context, userID string) ([]domain.Channel, error) {
	channels, err := a.store.ListChannelsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

// SearchChannels finds public channels matching the query.
func (a *App) SearchChannels(ctx context.Context, query string, maxResults int) ([]domain.ChannelInfo, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query required", ErrInvalidInput)
	}
	infos, err := a.youtube.SearchChannels(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}
	return infos, nil
}

// userChannel resolves a channel owned by the user. Channels that exist but
// belong to someone else are reported as not found.
func (a *App) userChannel(userID, channelID string) (domain.Channel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return domain.Channel{}, fmt.Errorf("%w: channel id required", ErrInvalidInput)
	}
	channel, ok, err := a.store.GetUserChannel(userID, channelID)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("load channel: %w", err)
	}
	if !ok {
		return domain.Channel{}, ErrChannelNotFound
	}
	return channel, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creatorhub/internal/util"
	"creatorhub/pkg/agent"
	"creatorhub/pkg/credits"
	"creatorhub/pkg/domain"
	"creatorhub/pkg/jobs"
)

const presignExpiry = 24 * time.Hour

// GeneratedAsset is a metered generation result with the post-debit balance.
type GeneratedAsset struct {
	Asset   domain.Asset `json:"asset"`
	Credits int          `json:"credits"`
}

// GenerateAudio starts an async text-to-speech job for the channel. The
// action cost is debited up front and compensated if the agent rejects the
// job; once the job is accepted, the debit stands regardless of how the job
// ends.
func (a *App) GenerateAudio(ctx context.Context, userID, channelID, text, voiceID string) (GeneratedAsset, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return GeneratedAsset{}, err
	}
	if strings.TrimSpace(text) == "" {
		return GeneratedAsset{}, fmt.Errorf("%w: text required", ErrInvalidInput)
	}
	remaining, err := a.ledger.Debit(userID, credits.ActionAudioGenerate)
	if err != nil {
		return GeneratedAsset{}, err
	}
	result, err := a.agent.GenerateVoice(ctx, agent.VoiceRequest{Text: text, VoiceID: voiceID})
	if err != nil {
		a.refund(ctx, userID, credits.ActionAudioGenerate)
		return GeneratedAsset{}, err
	}
	asset := domain.Asset{
		ID:          util.NewID(),
		ChannelID:   channel.ChannelID,
		GeneratorID: result.GeneratorID,
		Status:      domain.StatusProcessing,
		AssetType:   domain.AssetTypeMP3,
	}
	if err := a.store.CreateAsset(asset, result.Raw); err != nil {
		a.refund(ctx, userID, credits.ActionAudioGenerate)
		return GeneratedAsset{}, fmt.Errorf("store asset: %w", err)
	}
	if a.jobs != nil {
		if err := a.jobs.Start(ctx, result.GeneratorID, userID); err != nil {
			util.LoggerFromContext(ctx).Warn("job tracker start failed",
				"generator_id", result.GeneratorID, "error", err)
		}
	}
	stored, ok, err := a.store.GetAssetByGeneratorID(result.GeneratorID)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("asset missing after create")
		}
		return GeneratedAsset{}, err
	}
	return GeneratedAsset{Asset: stored, Credits: remaining}, nil
}

// ListAssets returns the generated assets of a channel owned by the user.
func (a *App) ListAssets(ctx context.Context, userID, channelID string) ([]domain.Asset, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return nil, err
	}
	assets, err := a.store.ListAssetsByChannel(channel.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	for i := range assets {
		assets[i] = a.presentAsset(ctx, assets[i])
	}
	return assets, nil
}

// presentAsset signs a fresh read URL for an archived asset. Presigned links
// expire, so the object key is stored and signed on every read; assets that
// were never archived keep the agent-side URL.
func (a *App) presentAsset(ctx context.Context, asset domain.Asset) domain.Asset {
	if a.archiver == nil || asset.ObjectKey == "" {
		return asset
	}
	url, err := a.archiver.PresignGet(ctx, asset.ObjectKey, presignExpiry)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("presign asset failed",
			"generator_id", asset.GeneratorID, "error", err)
		return asset
	}
	asset.URL = url
	return asset
}

// CompleteAsset handles the agent's out-of-band completion callback. On
// success the media is archived into our bucket before the asset row flips,
// so the stored URL outlives the agent's retention window.
func (a *App) CompleteAsset(ctx context.Context, generatorID string, succeeded bool, mediaURL, failReason string) (domain.Asset, error) {
	generatorID = strings.TrimSpace(generatorID)
	if generatorID == "" {
		return domain.Asset{}, fmt.Errorf("%w: generator id required", ErrInvalidInput)
	}
	asset, ok, err := a.store.GetAssetByGeneratorID(generatorID)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("load asset: %w", err)
	}
	if !ok {
		return domain.Asset{}, ErrAssetNotFound
	}

	status := domain.StatusFailed
	finalURL := ""
	objectKey := ""
	if succeeded {
		if strings.TrimSpace(mediaURL) == "" {
			return domain.Asset{}, fmt.Errorf("%w: media url required on success", ErrInvalidInput)
		}
		status = domain.StatusCompleted
		finalURL = mediaURL
		if a.archiver != nil {
			key := fmt.Sprintf("assets/%s/%s.%s", asset.ChannelID, generatorID, asset.AssetType)
			if err := a.archiver.ArchiveFromURL(ctx, mediaURL, key); err != nil {
				// Keep the agent URL rather than failing the completion.
				util.LoggerFromContext(ctx).Warn("asset archival failed",
					"generator_id", generatorID, "error", err)
			} else {
				objectKey = key
			}
		}
	}

	if err := a.store.CompleteAsset(generatorID, status, finalURL, objectKey); err != nil {
		return domain.Asset{}, fmt.Errorf("complete asset: %w", err)
	}
	updated, ok, err := a.store.GetAssetByGeneratorID(generatorID)
	if err != nil || !ok {
		if err == nil {
			err = ErrAssetNotFound
		}
		return domain.Asset{}, err
	}
	updated = a.presentAsset(ctx, updated)
	if a.jobs != nil {
		var trackErr error
		if succeeded {
			trackErr = a.jobs.Complete(ctx, generatorID, updated.URL)
		} else {
			trackErr = a.jobs.Fail(ctx, generatorID, failReason)
		}
		if trackErr != nil && !errors.Is(trackErr, jobs.ErrNotFound) {
			util.LoggerFromContext(ctx).Warn("job tracker update failed",
				"generator_id", generatorID, "error", trackErr)
		}
	}
	return updated, nil
}

// JobStatus reports the live state of a generation job owned by the caller.
// When the tracker entry has expired, the durable asset row answers instead.
func (a *App) JobStatus(ctx context.Context, userID, generatorID string) (jobs.Status, error) {
	generatorID = strings.TrimSpace(generatorID)
	if generatorID == "" {
		return jobs.Status{}, fmt.Errorf("%w: generator id required", ErrInvalidInput)
	}
	if a.jobs != nil {
		status, err := a.jobs.Get(ctx, generatorID)
		if err == nil {
			if status.UserID != userID {
				return jobs.Status{}, ErrJobNotFound
			}
			return status, nil
		}
		if !errors.Is(err, jobs.ErrNotFound) {
			return jobs.Status{}, fmt.Errorf("job status: %w", err)
		}
	}
	asset, ok, err := a.store.GetAssetByGeneratorID(generatorID)
	if err != nil {
		return jobs.Status{}, fmt.Errorf("load asset: %w", err)
	}
	if !ok {
		return jobs.Status{}, ErrJobNotFound
	}
	if _, ok, err := a.store.GetUserChannel(userID, asset.ChannelID); err != nil {
		return jobs.Status{}, fmt.Errorf("load channel: %w", err)
	} else if !ok {
		return jobs.Status{}, ErrJobNotFound
	}
	asset = a.presentAsset(ctx, asset)
	return jobs.Status{
		GeneratorID: generatorID,
		UserID:      userID,
		Status:      string(asset.Status),
		URL:         asset.URL,
		UpdatedAt:   asset.UpdatedAt,
	}, nil
}

// ReelInput describes a new reel. MediaURLs reference already-uploaded media;
// each becomes a reel asset typed by its URL extension.
type ReelInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	VideoIdeaID string   `json:"videoIdeaId"`
	MediaURLs   []string `json:"images"`
}

var videoExtensions = []string{".mp4", ".webm", ".mov", ".avi"}

func reelAssetType(mediaURL string) domain.AssetType {
	lower := strings.ToLower(mediaURL)
	for _, ext := range videoExtensions {
		if strings.Contains(lower, ext) {
			return domain.AssetTypeMP4
		}
	}
	return domain.AssetTypeImage
}

// CreateReel records a reel generation job and its component assets. Generator
// ids are minted here; the external renderer reports back through them.
func (a *App) CreateReel(ctx context.Context, userID, channelID string, input ReelInput) (domain.Reel, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return domain.Reel{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.Reel{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if input.VideoIdeaID != "" {
		if _, err := a.ownedIdea(userID, input.VideoIdeaID); err != nil {
			return domain.Reel{}, err
		}
	}
	reel := domain.Reel{
		ID:          util.NewID(),
		ChannelID:   channel.ChannelID,
		GeneratorID: "reel_" + uuid.NewString(),
		Status:      domain.StatusProcessing,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		VideoIdeaID: input.VideoIdeaID,
	}
	assets := make([]domain.ReelAsset, 0, len(input.MediaURLs))
	for _, mediaURL := range input.MediaURLs {
		mediaURL = strings.TrimSpace(mediaURL)
		if mediaURL == "" {
			return domain.Reel{}, fmt.Errorf("%w: media url must not be empty", ErrInvalidInput)
		}
		assets = append(assets, domain.ReelAsset{
			ID:          util.NewID(),
			ReelID:      reel.ID,
			GeneratorID: "reel_asset_" + uuid.NewString(),
			Status:      domain.StatusProcessing,
			URL:         mediaURL,
			AssetType:   reelAssetType(mediaURL),
		})
	}
	if err := a.store.CreateReel(reel, assets); err != nil {
		return domain.Reel{}, fmt.Errorf("create reel: %w", err)
	}
	reels, err := a.store.ListReelsByChannel(channel.ChannelID)
	if err != nil {
		return domain.Reel{}, fmt.Errorf("load reel: %w", err)
	}
	for _, r := range reels {
		if r.ID == reel.ID {
			return r, nil
		}
	}
	return domain.Reel{}, errors.New("reel missing after create")
}

// ListReels returns the reels of a channel owned by the user.
func (a *App) ListReels(ctx context.Context, userID, channelID string) ([]domain.Reel, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return nil, err
	}
	reels, err := a.store.ListReelsByChannel(channel.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("list reels: %w", err)
	}
	return reels, nil
}

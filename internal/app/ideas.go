package app

import (
	"context"
	"fmt"
	"strings"

	"creatorhub/internal/util"
	"creatorhub/pkg/credits"
	"creatorhub/pkg/domain"
)

// IdeaInput is the editable surface of a video idea.
type IdeaInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Script      string `json:"script"`
	Plan        string `json:"plan"`
	Tags        string `json:"tags"`
}

// CreateIdea stores a manually written idea under the user's channel.
func (a *App) CreateIdea(ctx context.Context, userID, channelID string, input IdeaInput) (domain.VideoIdea, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return domain.VideoIdea{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.VideoIdea{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	idea := domain.VideoIdea{
		ID:          util.NewID(),
		ChannelID:   channel.ChannelID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Script:      input.Script,
		Plan:        input.Plan,
		Tags:        input.Tags,
	}
	if err := a.store.CreateIdea(idea); err != nil {
		return domain.VideoIdea{}, fmt.Errorf("create idea: %w", err)
	}
	return a.ownedIdea(userID, idea.ID)
}

// ListIdeas returns the ideas of a channel owned by the user.
func (a *App) ListIdeas(ctx context.Context, userID, channelID string) ([]domain.VideoIdea, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return nil, err
	}
	ideas, err := a.store.ListIdeasByChannel(channel.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	return ideas, nil
}

// GetIdea returns a single idea owned by the user.
func (a *App) GetIdea(ctx context.Context, userID, ideaID string) (domain.VideoIdea, error) {
	return a.ownedIdea(userID, ideaID)
}

// UpdateIdea replaces the editable fields of an idea owned by the user.
func (a *App) UpdateIdea(ctx context.Context, userID, ideaID string, input IdeaInput) (domain.VideoIdea, error) {
	idea, err := a.ownedIdea(userID, ideaID)
	if err != nil {
		return domain.VideoIdea{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.VideoIdea{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	idea.Title = strings.TrimSpace(input.Title)
	idea.Description = input.Description
	idea.Script = input.Script
	idea.Plan = input.Plan
	idea.Tags = input.Tags
	if err := a.store.UpdateIdea(idea); err != nil {
		return domain.VideoIdea{}, fmt.Errorf("update idea: %w", err)
	}
	return a.ownedIdea(userID, ideaID)
}

// DeleteIdea removes an idea owned by the user.
func (a *App) DeleteIdea(ctx context.Context, userID, ideaID string) error {
	idea, err := a.ownedIdea(userID, ideaID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteIdea(idea.ID); err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	return nil
}

// GeneratedIdea is a metered generation result with the post-debit balance.
type GeneratedIdea struct {
	Idea    domain.VideoIdea `json:"idea"`
	Credits int              `json:"credits"`
}

// GenerateNextIdea asks the agent for the channel's next video idea. The
// action cost is debited up front and compensated if the agent fails.
func (a *App) GenerateNextIdea(ctx context.Context, userID, channelID, prompt string) (GeneratedIdea, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return GeneratedIdea{}, err
	}
	remaining, err := a.ledger.Debit(userID, credits.ActionIdeasGenerateNext)
	if err != nil {
		return GeneratedIdea{}, err
	}
	result, err := a.agent.NextVideoIdea(ctx, agentNextIdeaRequest(channel, prompt))
	if err != nil {
		a.refund(ctx, userID, credits.ActionIdeasGenerateNext)
		return GeneratedIdea{}, err
	}
	idea := domain.VideoIdea{
		ID:          util.NewID(),
		ChannelID:   channel.ChannelID,
		Title:       result.Title,
		Description: result.Description,
		Script:      result.Script,
		Plan:        result.Plan,
	}
	if err := a.store.CreateIdea(idea); err != nil {
		a.refund(ctx, userID, credits.ActionIdeasGenerateNext)
		return GeneratedIdea{}, fmt.Errorf("store generated idea: %w", err)
	}
	stored, err := a.ownedIdea(userID, idea.ID)
	if err != nil {
		return GeneratedIdea{}, err
	}
	return GeneratedIdea{Idea: stored, Credits: remaining}, nil
}

// GeneratedSEO is a metered keyword result with the post-debit balance.
type GeneratedSEO struct {
	Tags    []string `json:"tags"`
	Credits int      `json:"credits"`
}

// GenerateSEO asks the agent for keyword suggestions and persists them on the
// idea. The action cost is debited up front and compensated if the agent
// fails.
func (a *App) GenerateSEO(ctx context.Context, userID, ideaID string) (GeneratedSEO, error) {
	idea, err := a.ownedIdea(userID, ideaID)
	if err != nil {
		return GeneratedSEO{}, err
	}
	remaining, err := a.ledger.Debit(userID, credits.ActionIdeasGenerateSEO)
	if err != nil {
		return GeneratedSEO{}, err
	}
	result, err := a.agent.GenerateSEO(ctx, agentSEORequest(idea))
	if err != nil {
		a.refund(ctx, userID, credits.ActionIdeasGenerateSEO)
		return GeneratedSEO{}, err
	}
	if err := a.store.SetIdeaTags(idea.ID, strings.Join(result.Tags, ",")); err != nil {
		a.refund(ctx, userID, credits.ActionIdeasGenerateSEO)
		return GeneratedSEO{}, fmt.Errorf("store idea tags: %w", err)
	}
	return GeneratedSEO{Tags: result.Tags, Credits: remaining}, nil
}

// ownedIdea resolves an idea and verifies the owning channel belongs to the
// user. Foreign ideas are reported as not found.
func (a *App) ownedIdea(userID, ideaID string) (domain.VideoIdea, error) {
	ideaID = strings.TrimSpace(ideaID)
	if ideaID == "" {
		return domain.VideoIdea{}, fmt.Errorf("%w: idea id required", ErrInvalidInput)
	}
	idea, ok, err := a.store.GetIdea(ideaID)
	if err != nil {
		return domain.VideoIdea{}, fmt.Errorf("load idea: %w", err)
	}
	if !ok {
		return domain.VideoIdea{}, ErrIdeaNotFound
	}
	if _, ok, err := a.store.GetUserChannel(userID, idea.ChannelID); err != nil {
		return domain.VideoIdea{}, fmt.Errorf("load channel: %w", err)
	} else if !ok {
		return domain.VideoIdea{}, ErrIdeaNotFound
	}
	return idea, nil
}

// refund issues the compensating increment after a failed metered call. A
// refund failure leaves the user undercredited, so it is logged loudly for
// manual reconciliation rather than silently dropped.
func (a *App) refund(ctx context.Context, userID string, action credits.Action) {
	if _, err := a.ledger.Refund(userID, action); err != nil {
		util.LoggerFromContext(ctx).Error("credit refund failed",
			"user_id", userID,
			"action", string(action),
			"error", err,
		)
	}
}

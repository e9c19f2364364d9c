package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"creatorhub/pkg/agent"
	"creatorhub/pkg/credits"
)

// Analysis is a metered agent payload with the post-debit balance.
type Analysis struct {
	Result  json.RawMessage `json:"result"`
	Credits int             `json:"credits"`
}

// PredictCTR asks the agent to score a video packaging. The action cost is
// debited up front and compensated if the agent fails.
func (a *App) PredictCTR(ctx context.Context, userID, title, description, thumbnail string) (Analysis, error) {
	if strings.TrimSpace(title) == "" {
		return Analysis{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	remaining, err := a.ledger.Debit(userID, credits.ActionCTRPredict)
	if err != nil {
		return Analysis{}, err
	}
	result, err := a.agent.PredictCTR(ctx, agent.CTRRequest{
		Title:       title,
		Description: description,
		Thumbnail:   thumbnail,
	})
	if err != nil {
		a.refund(ctx, userID, credits.ActionCTRPredict)
		return Analysis{}, err
	}
	return Analysis{Result: result, Credits: remaining}, nil
}

// AnalyzeGaps asks the agent for a content-gap analysis of the user's
// channel. The action cost is debited up front and compensated if the agent
// fails.
func (a *App) AnalyzeGaps(ctx context.Context, userID, channelID string, competitors []string) (Analysis, error) {
	channel, err := a.userChannel(userID, channelID)
	if err != nil {
		return Analysis{}, err
	}
	remaining, err := a.ledger.Debit(userID, credits.ActionGapsAnalysis)
	if err != nil {
		return Analysis{}, err
	}
	result, err := a.agent.FindCompetitorGaps(ctx, agentGapsRequest(channel, competitors))
	if err != nil {
		a.refund(ctx, userID, credits.ActionGapsAnalysis)
		return Analysis{}, err
	}
	return Analysis{Result: result, Credits: remaining}, nil
}

// CritiqueComments asks the agent to critique a single video's comment
// section. This endpoint is not metered.
func (a *App) CritiqueComments(ctx context.Context, videoID string) (json.RawMessage, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id required", ErrInvalidInput)
	}
	result, err := a.agent.CritiqueComments(ctx, agent.CritiqueRequest{VideoID: videoID})
	if err != nil {
		return nil, err
	}
	return result, nil
}

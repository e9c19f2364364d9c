package app

import (
	"creatorhub/pkg/agent"
	"creatorhub/pkg/domain"
)

// Request builders translate stored channel/idea snapshots into agent inputs.

func agentNextIdeaRequest(channel domain.Channel, prompt string) agent.NextIdeaRequest {
	return agent.NextIdeaRequest{
		ChannelID:   channel.ChannelID,
		Title:       channel.Title,
		Description: channel.Description,
		Prompt:      prompt,
	}
}

func agentSEORequest(idea domain.VideoIdea) agent.SEORequest {
	return agent.SEORequest{
		Title:       idea.Title,
		Description: idea.Description,
		Script:      idea.Script,
	}
}

func agentGapsRequest(channel domain.Channel, competitors []string) agent.GapsRequest {
	return agent.GapsRequest{
		ChannelID:   channel.ChannelID,
		Title:       channel.Title,
		Description: channel.Description,
		Competitors: competitors,
	}
}

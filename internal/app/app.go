package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"creatorhub/pkg/agent"
	"creatorhub/pkg/billing"
	"creatorhub/pkg/credits"
	"creatorhub/pkg/domain"
	"creatorhub/pkg/jobs"
	"creatorhub/pkg/store"
)

// AgentClient is the surface of the external AI agent used by the app.
type AgentClient interface {
	GenerateVoice(ctx context.Context, req agent.VoiceRequest) (agent.VoiceResult, error)
	PredictCTR(ctx context.Context, req agent.CTRRequest) (json.RawMessage, error)
	GenerateSEO(ctx context.Context, req agent.SEORequest) (agent.SEOResult, error)
	FindCompetitorGaps(ctx context.Context, req agent.GapsRequest) (json.RawMessage, error)
	CritiqueComments(ctx context.Context, req agent.CritiqueRequest) (json.RawMessage, error)
	NextVideoIdea(ctx context.Context, req agent.NextIdeaRequest) (agent.NextIdeaResult, error)
}

// YouTubeClient is the surface of the YouTube Data API used by the app.
type YouTubeClient interface {
	GetChannel(ctx context.Context, channelID string) (domain.ChannelInfo, error)
	ListMyChannels(ctx context.Context, oauthToken string) ([]domain.ChannelInfo, error)
	SearchChannels(ctx context.Context, query string, maxResults int) ([]domain.ChannelInfo, error)
}

// PaymentClient is the surface of the payment provider used by the app.
type PaymentClient interface {
	CreateIntent(ctx context.Context, userID string, pack billing.Pack) (billing.Intent, error)
	GetIntent(ctx context.Context, intentID string) (billing.Intent, error)
}

// JobTracker tracks async generation jobs by generator id.
type JobTracker interface {
	Start(ctx context.Context, generatorID, userID string) error
	Complete(ctx context.Context, generatorID, url string) error
	Fail(ctx context.Context, generatorID, reason string) error
	Get(ctx context.Context, generatorID string) (jobs.Status, error)
}

// MediaArchiver copies completed media into durable storage and signs read
// URLs for it on demand.
type MediaArchiver interface {
	ArchiveFromURL(ctx context.Context, srcURL, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config holds the dependencies of the core application.
type Config struct {
	Store    store.Store
	Agent    AgentClient
	YouTube  YouTubeClient
	Payments PaymentClient
	Jobs     JobTracker
	Archiver MediaArchiver

	// SignupCredits seeds new accounts on first sync. Zero means the
	// default starter grant.
	SignupCredits int
}

const defaultSignupCredits = 50

// App wires storage, the credit ledger, and external services behind the
// HTTP layer.
type App struct {
	store         store.Store
	ledger        *credits.Ledger
	agent         AgentClient
	youtube       YouTubeClient
	payments      PaymentClient
	jobs          JobTracker
	archiver      MediaArchiver
	signupCredits int
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("agent client is required")
	}
	if cfg.YouTube == nil {
		return nil, errors.New("youtube client is required")
	}
	signupCredits := cfg.SignupCredits
	if signupCredits <= 0 {
		signupCredits = defaultSignupCredits
	}
	return &App{
		store:         cfg.Store,
		ledger:        credits.NewLedger(cfg.Store),
		agent:         cfg.Agent,
		youtube:       cfg.YouTube,
		payments:      cfg.Payments,
		jobs:          cfg.Jobs,
		archiver:      cfg.Archiver,
		signupCredits: signupCredits,
	}, nil
}

// Ledger exposes the credit ledger for read-only uses (cost table endpoint).
func (a *App) Ledger() *credits.Ledger {
	return a.ledger
}

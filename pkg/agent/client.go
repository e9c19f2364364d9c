package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"creatorhub/internal/servicetoken"
)

// Per-endpoint deadlines. Gap analysis and comment critique crawl competitor
// uploads before answering; idea generation chains several model calls and
// needs the longest budget.
const (
	defaultTimeout  = 60 * time.Second
	analysisTimeout = 120 * time.Second
	ideaTimeout     = 300 * time.Second
)

// ErrTimeout reports that the agent did not answer within the endpoint's
// deadline.
var ErrTimeout = errors.New("agent request timed out")

// Error is a non-2xx reply from the agent service.
type Error struct {
	Status  int
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("agent: status %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("agent: status %d: %s", e.Status, e.Message)
}

// Client calls the external AI agent service. Outbound requests carry a
// short-lived service token so the agent can trust completion callbacks it
// issues in response.
type Client struct {
	baseURL    string
	audience   string
	signer     *servicetoken.Signer
	httpClient *http.Client
}

// Config configures the agent client. Signer may be nil in tests.
type Config struct {
	BaseURL    string
	Audience   string
	Signer     *servicetoken.Signer
	HTTPClient *http.Client
}

// NewClient creates an agent client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("agent base url is required")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "agent"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Per-call deadlines come from contexts, not the client.
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		audience:   audience,
		signer:     cfg.Signer,
		httpClient: httpClient,
	}, nil
}

// VoiceRequest asks for text-to-speech rendering of a script.
type VoiceRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// VoiceResult carries the correlation id for the audio job plus the raw
// agent payload for persistence.
type VoiceResult struct {
	GeneratorID string
	Raw         json.RawMessage
}

// GenerateVoice starts an async audio generation job.
func (c *Client) GenerateVoice(ctx context.Context, req VoiceRequest) (VoiceResult, error) {
	raw, err := c.do(ctx, "/Voice_from_text", defaultTimeout, req)
	if err != nil {
		return VoiceResult{}, err
	}
	var payload struct {
		GeneratorID string `json:"generator_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return VoiceResult{}, fmt.Errorf("decode voice response: %w", err)
	}
	if strings.TrimSpace(payload.GeneratorID) == "" {
		return VoiceResult{}, &Error{Status: http.StatusBadGateway, Message: "agent response missing generator_id"}
	}
	return VoiceResult{GeneratorID: payload.GeneratorID, Raw: raw}, nil
}

// CTRRequest asks for a click-through-rate prediction of a video packaging.
type CTRRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// PredictCTR returns the agent's prediction payload verbatim.
func (c *Client) PredictCTR(ctx context.Context, req CTRRequest) (json.RawMessage, error) {
	return c.do(ctx, "/CTR_Predictor", defaultTimeout, req)
}

// SEORequest asks for keyword suggestions for an existing idea.
type SEORequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Script      string `json:"script,omitempty"`
}

// SEOResult is the parsed keyword set plus the raw payload.
type SEOResult struct {
	Tags []string
	Raw  json.RawMessage
}

// GenerateSEO returns keyword suggestions for a video idea.
func (c *Client) GenerateSEO(ctx context.Context, req SEORequest) (SEOResult, error) {
	raw, err := c.do(ctx, "/SEO_agent", defaultTimeout, req)
	if err != nil {
		return SEOResult{}, err
	}
	var payload struct {
		Tags     []string `json:"tags"`
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SEOResult{}, fmt.Errorf("decode seo response: %w", err)
	}
	tags := payload.Tags
	if len(tags) == 0 {
		tags = payload.Keywords
	}
	return SEOResult{Tags: tags, Raw: raw}, nil
}

// GapsRequest asks for a content-gap analysis against competitor channels.
type GapsRequest struct {
	ChannelID   string   `json:"channel_id"`
	Title       string   `json:"channel_title,omitempty"`
	Description string   `json:"channel_description,omitempty"`
	Competitors []string `json:"competitors,omitempty"`
}

// FindCompetitorGaps returns the analysis payload verbatim.
func (c *Client) FindCompetitorGaps(ctx context.Context, req GapsRequest) (json.RawMessage, error) {
	return c.do(ctx, "/Competitor_Gap_Finder", analysisTimeout, req)
}

// CritiqueRequest asks for a critique of a single video's comment section.
type CritiqueRequest struct {
	VideoID string `json:"video_id"`
}

// CritiqueComments returns the critique payload verbatim.
func (c *Client) CritiqueComments(ctx context.Context, req CritiqueRequest) (json.RawMessage, error) {
	return c.do(ctx, "/Analyze_Single_Video_Comments", analysisTimeout, req)
}

// NextIdeaRequest asks for the next video idea for a channel.
type NextIdeaRequest struct {
	ChannelID   string `json:"channel_id"`
	Title       string `json:"channel_title,omitempty"`
	Description string `json:"channel_description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// NextIdeaResult is the parsed idea plus the raw payload.
type NextIdeaResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Script      string `json:"script"`
	Plan        string `json:"plan"`
	Raw         json.RawMessage
}

// NextVideoIdea generates a full video idea (title, description, script,
// production plan).
func (c *Client) NextVideoIdea(ctx context.Context, req NextIdeaRequest) (NextIdeaResult, error) {
	raw, err := c.do(ctx, "/Next_Video_Idea_Generator", ideaTimeout, req)
	if err != nil {
		return NextIdeaResult{}, err
	}
	var result NextIdeaResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return NextIdeaResult{}, fmt.Errorf("decode idea response: %w", err)
	}
	if strings.TrimSpace(result.Title) == "" {
		return NextIdeaResult{}, &Error{Status: http.StatusBadGateway, Message: "agent response missing idea title"}
	}
	result.Raw = raw
	return result, nil
}

func (c *Client) do(ctx context.Context, path string, timeout time.Duration, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		token, err := c.signer.Sign(c.audience)
		if err != nil {
			return nil, fmt.Errorf("sign agent token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", path, ErrTimeout)
		}
		return nil, fmt.Errorf("agent request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", path, ErrTimeout)
		}
		return nil, fmt.Errorf("read agent response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		agentErr := &Error{Status: resp.StatusCode, Message: resp.Status}
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Details string `json:"details"`
		}
		if json.Unmarshal(raw, &errResp) == nil {
			if errResp.Error != "" {
				agentErr.Message = errResp.Error
			} else if errResp.Message != "" {
				agentErr.Message = errResp.Message
			}
			agentErr.Details = errResp.Details
		}
		return nil, agentErr
	}
	return raw, nil
}

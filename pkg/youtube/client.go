package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"creatorhub/pkg/domain"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ErrChannelNotFound reports that the Data API returned no channel for the id.
var ErrChannelNotFound = errors.New("youtube channel not found")

// Client is a thin wrapper over the YouTube Data API v3. Public lookups use
// the API key; listing the caller's own channels requires their Google OAuth
// access token.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Config configures the client. BaseURL is overridable for tests.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("youtube api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}, nil
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Thumbnails  struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
			ViewCount       string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type searchListResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
	} `json:"items"`
}

// GetChannel fetches snippet and statistics for one channel id.
func (c *Client) GetChannel(ctx context.Context, channelID string) (domain.ChannelInfo, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return domain.ChannelInfo{}, errors.New("channel id is required")
	}
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", channelID)
	var payload channelListResponse
	if err := c.get(ctx, "/channels", params, "", &payload); err != nil {
		return domain.ChannelInfo{}, err
	}
	if len(payload.Items) == 0 {
		return domain.ChannelInfo{}, ErrChannelNotFound
	}
	return channelInfoFromItem(payload, 0), nil
}

// ListMyChannels lists channels owned by the caller, authorized by their
// Google OAuth access token.
func (c *Client) ListMyChannels(ctx context.Context, oauthToken string) ([]domain.ChannelInfo, error) {
	oauthToken = strings.TrimSpace(oauthToken)
	if oauthToken == "" {
		return nil, errors.New("google oauth token is required")
	}
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("mine", "true")
	var payload channelListResponse
	if err := c.get(ctx, "/channels", params, oauthToken, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.ChannelInfo, 0, len(payload.Items))
	for i := range payload.Items {
		out = append(out, channelInfoFromItem(payload, i))
	}
	return out, nil
}

// SearchChannels finds channels matching the query. Search results carry only
// ids, so statistics are hydrated with one bounded fan-out per result.
func (c *Client) SearchChannels(ctx context.Context, query string, maxResults int) ([]domain.ChannelInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if maxResults <= 0 || maxResults > 25 {
		maxResults = 10
	}
	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "channel")
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprintf("%d", maxResults))
	var payload searchListResponse
	if err := c.get(ctx, "/search", params, "", &payload); err != nil {
		return nil, err
	}

	infos := make([]domain.ChannelInfo, len(payload.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, item := range payload.Items {
		i := i
		channelID := strings.TrimSpace(item.ID.ChannelID)
		if channelID == "" {
			continue
		}
		g.Go(func() error {
			info, err := c.GetChannel(gctx, channelID)
			if err != nil {
				if errors.Is(err, ErrChannelNotFound) {
					return nil
				}
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.ChannelInfo, 0, len(infos))
	for _, info := range infos {
		if info.ID != "" {
			out = append(out, info)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, oauthToken string, out any) error {
	if oauthToken == "" {
		params.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if oauthToken != "" {
		req.Header.Set("Authorization", "Bearer "+oauthToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("youtube api %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func channelInfoFromItem(payload channelListResponse, i int) domain.ChannelInfo {
	item := payload.Items[i]
	thumbnail := item.Snippet.Thumbnails.Medium.URL
	if thumbnail == "" {
		thumbnail = item.Snippet.Thumbnails.Default.URL
	}
	return domain.ChannelInfo{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		Thumbnail:       thumbnail,
		SubscriberCount: item.Statistics.SubscriberCount,
		VideoCount:      item.Statistics.VideoCount,
		ViewCount:       item.Statistics.ViewCount,
	}
}

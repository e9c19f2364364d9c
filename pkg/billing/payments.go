package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// IntentStatusSucceeded is the provider status for a captured payment.
const IntentStatusSucceeded = "succeeded"

// Intent is a payment intent as reported by the payment provider. Metadata
// ties the payment back to the purchasing user and pack.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	AmountCents  int    `json:"amount"`
	Currency     string `json:"currency"`
	PackID       string `json:"-"`
	UserID       string `json:"-"`
}

// PaymentClient talks to the card payment provider's intent API. The secret
// key authenticates via bearer auth; the form-encoded wire format follows the
// provider's convention.
type PaymentClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// PaymentConfig configures the payment client. BaseURL is overridable for
// tests.
type PaymentConfig struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

func NewPaymentClient(cfg PaymentConfig) (*PaymentClient, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("payment secret key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &PaymentClient{baseURL: baseURL, secretKey: secretKey, httpClient: httpClient}, nil
}

// CreateIntent opens a payment intent for the pack on behalf of the user.
func (c *PaymentClient) CreateIntent(ctx context.Context, userID string, pack Pack) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.Itoa(pack.AmountCents))
	form.Set("currency", pack.Currency)
	form.Set("metadata[packId]", pack.ID)
	form.Set("metadata[userId]", userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// GetIntent fetches an intent so its captured status can be checked before
// crediting.
func (c *PaymentClient) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Intent{}, errors.New("intent id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return Intent{}, err
	}
	return c.do(req)
}

func (c *PaymentClient) do(req *http.Request) (Intent, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("payment request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
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
		return Intent{}, fmt.Errorf("payment provider: status %d: %s", resp.StatusCode, msg)
	}
	var payload struct {
		Intent
		Metadata struct {
			PackID string `json:"packId"`
			UserID string `json:"userId"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Intent{}, fmt.Errorf("decode payment response: %w", err)
	}
	intent := payload.Intent
	intent.PackID = payload.Metadata.PackID
	intent.UserID = payload.Metadata.UserID
	if intent.ID == "" {
		return Intent{}, errors.New("payment response missing intent id")
	}
	return intent, nil
}

package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"creatorhub/internal/app"
	"creatorhub/internal/ratelimit"
	"creatorhub/internal/servicetoken"
	"creatorhub/internal/usertoken"
	"creatorhub/pkg/agent"
	"creatorhub/pkg/billing"
	"creatorhub/pkg/credits"
	"creatorhub/pkg/domain"
	"creatorhub/pkg/store"
	"creatorhub/pkg/youtube"
)

type fakeAgent struct {
	mu       sync.Mutex
	failWith error
	voiceSeq int
}

func (f *fakeAgent) fail(err error) {
	f.mu.Lock()
	f.failWith = err
	f.mu.Unlock()
}

func (f *fakeAgent) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWith
}

func (f *fakeAgent) GenerateVoice(_ context.Context, _ agent.VoiceRequest) (agent.VoiceResult, error) {
	if err := f.err(); err != nil {
		return agent.VoiceResult{}, err
	}
	f.mu.Lock()
	f.voiceSeq++
	id := fmt.Sprintf("gen-%d", f.voiceSeq)
	f.mu.Unlock()
	return agent.VoiceResult{GeneratorID: id, Raw: json.RawMessage(`{"accepted":true}`)}, nil
}

func (f *fakeAgent) PredictCTR(_ context.Context, _ agent.CTRRequest) (json.RawMessage, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"score":0.42}`), nil
}

func (f *fakeAgent) GenerateSEO(_ context.Context, _ agent.SEORequest) (agent.SEOResult, error) {
	if err := f.err(); err != nil {
		return agent.SEOResult{}, err
	}
	return agent.SEOResult{Tags: []string{"go", "tutorial"}}, nil
}

func (f *fakeAgent) FindCompetitorGaps(_ context.Context, _ agent.GapsRequest) (json.RawMessage, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"gaps":[]}`), nil
}

func (f *fakeAgent) CritiqueComments(_ context.Context, _ agent.CritiqueRequest) (json.RawMessage, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"sentiment":"positive"}`), nil
}

func (f *fakeAgent) NextVideoIdea(_ context.Context, _ agent.NextIdeaRequest) (agent.NextIdeaResult, error) {
	if err := f.err(); err != nil {
		return agent.NextIdeaResult{}, err
	}
	return agent.NextIdeaResult{Title: "Generated Idea", Description: "d", Script: "s", Plan: "p"}, nil
}

type fakeYouTube struct{}

func (fakeYouTube) GetChannel(_ context.Context, channelID string) (domain.ChannelInfo, error) {
	if channelID == "missing" {
		return domain.ChannelInfo{}, youtube.ErrChannelNotFound
	}
	return domain.ChannelInfo{
		ID:              channelID,
		Title:           "Channel " + channelID,
		SubscriberCount: "100",
		VideoCount:      "10",
		ViewCount:       "1000",
	}, nil
}

func (fakeYouTube) ListMyChannels(_ context.Context, _ string) ([]domain.ChannelInfo, error) {
	return []domain.ChannelInfo{{ID: "mine-1", Title: "Mine"}}, nil
}

func (fakeYouTube) SearchChannels(_ context.Context, query string, _ int) ([]domain.ChannelInfo, error) {
	return []domain.ChannelInfo{{ID: "found-1", Title: query}}, nil
}

type fakePayments struct {
	mu      sync.Mutex
	seq     int
	intents map[string]billing.Intent
}

func newFakePayments() *fakePayments {
	return &fakePayments{intents: make(map[string]billing.Intent)}
}

func (f *fakePayments) CreateIntent(_ context.Context, userID string, pack billing.Pack) (billing.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	intent := billing.Intent{
		ID:           fmt.Sprintf("pi_%d", f.seq),
		ClientSecret: fmt.Sprintf("pi_%d_secret", f.seq),
		Status:       "requires_payment_method",
		AmountCents:  pack.AmountCents,
		Currency:     "usd",
		PackID:       pack.ID,
		UserID:       userID,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakePayments) GetIntent(_ context.Context, intentID string) (billing.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[intentID]
	if !ok {
		return billing.Intent{}, errors.New("no such intent")
	}
	return intent, nil
}

func (f *fakePayments) settle(intentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent := f.intents[intentID]
	intent.Status = billing.IntentStatusSucceeded
	f.intents[intentID] = intent
}

type fixture struct {
	ts       *httptest.Server
	key      *rsa.PrivateKey
	agent    *fakeAgent
	payments *fakePayments
	signer   *servicetoken.Signer
}

func newFixture(t *testing.T, opts ...func(*app.Config, *Config)) *fixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "kid-1",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(jwksServer.Close)

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:  jwksServer.URL,
		Issuer:   "creatorhub-auth",
		Audience: "creatorhub-api",
	})
	if err != nil {
		t.Fatalf("new token verifier: %v", err)
	}

	signer, callbackVerifier := newServiceTokenPair(t)

	fa := &fakeAgent{}
	fp := newFakePayments()
	appCfg := app.Config{
		Store:    store.NewMemoryStore(),
		Agent:    fa,
		YouTube:  fakeYouTube{},
		Payments: fp,
	}
	srvCfg := Config{
		TokenVerifier:    tokenVerifier,
		CallbackVerifier: callbackVerifier,
	}
	for _, opt := range opts {
		opt(&appCfg, &srvCfg)
	}

	application, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srvCfg.App = application

	srv, err := New(srvCfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, key: key, agent: fa, payments: fp, signer: signer}
}

func newServiceTokenPair(t *testing.T) (*servicetoken.Signer, *servicetoken.Verifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate service key: %v", err)
	}
	dir := t.TempDir()
	privPath := filepath.Join(dir, "service.pem")
	pubPath := filepath.Join(dir, "service.pub.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	signer, err := servicetoken.NewSigner(servicetoken.SignerOptions{
		PrivateKeyPath: privPath,
		Issuer:         "agent-service",
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		PublicKeyPath:  pubPath,
		Audience:       "creatorhub-internal",
		AllowedIssuers: []string{"agent-service"},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return signer, verifier
}

func (f *fixture) userToken(t *testing.T, userID, email, name string) string {
	t.Helper()
	claims := struct {
		jwt.RegisteredClaims
		Email string `json:"email,omitempty"`
		Name  string `json:"name,omitempty"`
	}{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "creatorhub-auth",
			Audience:  jwt.ClaimStrings{"creatorhub-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Second)),
		},
		Email: email,
		Name:  name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign user token: %v", err)
	}
	return signed
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := readAll(resp)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// onboard syncs the user and connects a channel, returning the bearer token.
func (f *fixture) onboard(t *testing.T, userID, channelID string) string {
	t.Helper()
	token := f.userToken(t, userID, userID+"@example.com", "User "+userID)
	resp, body := f.do(t, http.MethodPost, "/api/users/sync", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync user: status %d body %s", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodPost, "/api/channels", token, map[string]string{"channelId": channelID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("connect channel: status %d body %s", resp.StatusCode, body)
	}
	return token
}

func (f *fixture) balance(t *testing.T, token string) int {
	t.Helper()
	resp, body := f.do(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get me: status %d body %s", resp.StatusCode, body)
	}
	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user.Credits
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/users/me", "/api/ideas", "/api/billing/packs"} {
		resp, _ := f.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
		}
	}
}

func TestRequestsWithForgedTokenAreRejected(t *testing.T) {
	f := newFixture(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "mallory",
		Issuer:    "creatorhub-auth",
		Audience:  jwt.ClaimStrings{"creatorhub-api"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(other)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	resp, _ := f.do(t, http.MethodGet, "/api/users/me", signed, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSyncSeedsStarterCredits(t *testing.T) {
	f := newFixture(t)
	token := f.userToken(t, "user-1", "u1@example.com", "User One")
	resp, body := f.do(t, http.MethodPost, "/api/users/sync", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: status %d body %s", resp.StatusCode, body)
	}
	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Credits != 50 {
		t.Fatalf("expected 50 starter credits, got %d", user.Credits)
	}
	if user.Email != "u1@example.com" || user.Name != "User One" {
		t.Fatalf("profile not synced: %+v", user)
	}
}

func TestGenerateAudioDebitsCredits(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")

	resp, body := f.do(t, http.MethodPost, "/api/audio/generate", token, map[string]string{
		"channelId": "chan-1",
		"text":      "hello world",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate audio: status %d body %s", resp.StatusCode, body)
	}
	var result struct {
		Asset   domain.Asset `json:"asset"`
		Credits int          `json:"credits"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Credits != 35 {
		t.Fatalf("expected 35 credits after debit, got %d", result.Credits)
	}
	if result.Asset.Status != domain.StatusProcessing || result.Asset.GeneratorID == "" {
		t.Fatalf("unexpected asset: %+v", result.Asset)
	}
}

func TestAgentFailureRefundsAndMapsToBadGateway(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")
	f.agent.fail(&agent.Error{Status: 500, Message: "boom"})

	resp, body := f.do(t, http.MethodPost, "/api/ctr/predict", token, map[string]string{"title": "My Video"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body %s", resp.StatusCode, body)
	}
	if got := f.balance(t, token); got != 50 {
		t.Fatalf("expected full refund to 50, got %d", got)
	}
}

func TestAgentTimeoutMapsToRequestTimeout(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")
	f.agent.fail(agent.ErrTimeout)

	resp, _ := f.do(t, http.MethodPost, "/api/channels/gaps", token, map[string]any{
		"channelId":   "chan-1",
		"competitors": []string{"chan-2"},
	})
	if resp.StatusCode != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", resp.StatusCode)
	}
	if got := f.balance(t, token); got != 50 {
		t.Fatalf("expected full refund to 50, got %d", got)
	}
}

func TestInsufficientCreditsReturnsPaymentRequired(t *testing.T) {
	f := newFixture(t, func(appCfg *app.Config, _ *Config) {
		appCfg.SignupCredits = 5
	})
	token := f.onboard(t, "user-1", "chan-1")

	resp, body := f.do(t, http.MethodPost, "/api/audio/generate", token, map[string]string{
		"channelId": "chan-1",
		"text":      "hello",
	})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d body %s", resp.StatusCode, body)
	}
	if got := f.balance(t, token); got != 5 {
		t.Fatalf("failed debit must not change balance: got %d", got)
	}
}

func TestForeignChannelIsReportedNotFound(t *testing.T) {
	f := newFixture(t)
	_ = f.onboard(t, "user-a", "chan-a")
	tokenB := f.userToken(t, "user-b", "b@example.com", "B")
	if resp, _ := f.do(t, http.MethodPost, "/api/users/sync", tokenB, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("sync user-b failed")
	}

	resp, _ := f.do(t, http.MethodGet, "/api/ideas?channelId=chan-a", tokenB, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign channel, got %d", resp.StatusCode)
	}
}

func TestReconnectReturnsExistingChannel(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-a", "chan-a")
	resp, body := f.do(t, http.MethodPost, "/api/channels", token, map[string]string{"channelId": "chan-a"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on reconnect, got %d", resp.StatusCode)
	}
	var result struct {
		Created bool `json:"created"`
		Channel struct {
			ChannelID string `json:"channelId"`
		} `json:"channel"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Created || result.Channel.ChannelID != "chan-a" {
		t.Fatalf("expected existing channel, got %+v", result)
	}
}

func TestChannelCheckOnboardingStates(t *testing.T) {
	f := newFixture(t)
	token := f.userToken(t, "user-1", "u@example.com", "U")
	if resp, _ := f.do(t, http.MethodPost, "/api/users/sync", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("sync failed")
	}

	resp, body := f.do(t, http.MethodGet, "/api/channels/check", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check: status %d body %s", resp.StatusCode, body)
	}
	var overview struct {
		HasChannels         bool `json:"hasChannels"`
		RequiresGoogleOAuth bool `json:"requiresGoogleOAuth"`
	}
	if err := json.Unmarshal(body, &overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.HasChannels || !overview.RequiresGoogleOAuth {
		t.Fatalf("expected oauth-required state, got %+v", overview)
	}

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/channels/check", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Google-Token", "google-token")
	withToken, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := readAll(withToken)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var suggested struct {
		Suggestions []struct {
			ID string `json:"id"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal(data, &suggested); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(suggested.Suggestions) != 1 || suggested.Suggestions[0].ID != "mine-1" {
		t.Fatalf("expected google-account suggestions, got %s", data)
	}
}

func TestIdeaLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")

	resp, body := f.do(t, http.MethodPost, "/api/ideas", token, map[string]string{
		"channelId": "chan-1",
		"title":     "First Idea",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create idea: status %d body %s", resp.StatusCode, body)
	}
	var idea domain.VideoIdea
	if err := json.Unmarshal(body, &idea); err != nil {
		t.Fatalf("decode idea: %v", err)
	}

	resp, body = f.do(t, http.MethodPut, "/api/ideas/"+idea.ID, token, map[string]string{"title": "Renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update idea: status %d body %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/ideas/"+idea.ID+"/generate-seo", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate seo: status %d body %s", resp.StatusCode, body)
	}
	var seo struct {
		Tags    []string `json:"tags"`
		Credits int      `json:"credits"`
	}
	if err := json.Unmarshal(body, &seo); err != nil {
		t.Fatalf("decode seo: %v", err)
	}
	if len(seo.Tags) != 2 || seo.Credits != 40 {
		t.Fatalf("unexpected seo result: %+v", seo)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/ideas/"+idea.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete idea: status %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/ideas/"+idea.ID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCritiqueIsNotMetered(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")
	resp, body := f.do(t, http.MethodPost, "/api/videos/comments/critique", token, map[string]string{"videoId": "vid-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("critique: status %d body %s", resp.StatusCode, body)
	}
	if got := f.balance(t, token); got != 50 {
		t.Fatalf("critique must not debit: got %d", got)
	}
}

func TestBillingCreditFlow(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")

	resp, body := f.do(t, http.MethodPost, "/api/billing/payment-intent", token, map[string]string{"packId": "pack_500"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payment intent: status %d body %s", resp.StatusCode, body)
	}
	var intent struct {
		IntentID string `json:"intentId"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		t.Fatalf("decode intent: %v", err)
	}

	// Crediting before capture must fail.
	resp, _ = f.do(t, http.MethodPost, "/api/billing/credit", token, map[string]string{"intentId": intent.IntentID})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 before capture, got %d", resp.StatusCode)
	}

	f.payments.settle(intent.IntentID)

	// A different user must not claim the purchase.
	other := f.userToken(t, "user-2", "u2@example.com", "U2")
	if resp, _ := f.do(t, http.MethodPost, "/api/users/sync", other, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("sync user-2 failed")
	}
	resp, _ = f.do(t, http.MethodPost, "/api/billing/credit", other, map[string]string{"intentId": intent.IntentID})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign intent, got %d", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodPost, "/api/billing/credit", token, map[string]string{"intentId": intent.IntentID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credit: status %d body %s", resp.StatusCode, body)
	}
	var result struct {
		Credits int `json:"credits"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Credits != 550 {
		t.Fatalf("expected 550 after pack_500, got %d", result.Credits)
	}
}

func TestUnknownPackIsBadRequest(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")
	resp, _ := f.do(t, http.MethodPost, "/api/billing/payment-intent", token, map[string]string{"packId": "pack_999"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestInternalCompletionRequiresServiceToken(t *testing.T) {
	f := newFixture(t)
	token := f.onboard(t, "user-1", "chan-1")

	resp, body := f.do(t, http.MethodPost, "/api/audio/generate", token, map[string]string{
		"channelId": "chan-1",
		"text":      "hello",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate audio: status %d body %s", resp.StatusCode, body)
	}
	var started struct {
		Asset domain.Asset `json:"asset"`
	}
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("decode asset: %v", err)
	}

	payload := map[string]any{
		"generatorId": started.Asset.GeneratorID,
		"success":     true,
		"url":         "https://media.example.com/out.mp3",
	}

	// No service token.
	resp, _ = f.do(t, http.MethodPost, "/internal/assets/complete", "", payload)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without service token, got %d", resp.StatusCode)
	}
	// A user token is not a service token.
	resp, _ = f.do(t, http.MethodPost, "/internal/assets/complete", token, payload)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with user token, got %d", resp.StatusCode)
	}

	serviceToken, err := f.signer.Sign("creatorhub-internal")
	if err != nil {
		t.Fatalf("sign service token: %v", err)
	}
	resp, body = f.do(t, http.MethodPost, "/internal/assets/complete", serviceToken, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: status %d body %s", resp.StatusCode, body)
	}
	var completed domain.Asset
	if err := json.Unmarshal(body, &completed); err != nil {
		t.Fatalf("decode asset: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.URL == "" {
		t.Fatalf("unexpected completed asset: %+v", completed)
	}
}

func TestGenerationRateLimitReturnsTooManyRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewFixedWindowLimiter(client, "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	f := newFixture(t, func(_ *app.Config, srvCfg *Config) {
		srvCfg.GenerateLimiter = limiter
	})
	token := f.onboard(t, "user-1", "chan-1")

	body := map[string]string{"title": "My Video"}
	resp, _ := f.do(t, http.MethodPost, "/api/ctr/predict", token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: status %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodPost, "/api/ctr/predict", token, body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestCreditCostsEndpoint(t *testing.T) {
	f := newFixture(t)
	token := f.userToken(t, "user-1", "u@example.com", "U")
	resp, body := f.do(t, http.MethodGet, "/api/credits/costs", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("costs: status %d body %s", resp.StatusCode, body)
	}
	var result struct {
		Costs map[string]int `json:"costs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode costs: %v", err)
	}
	if result.Costs["AUDIO_GENERATE"] != 15 || result.Costs["IDEAS_GENERATE_NEXT"] != 25 {
		t.Fatalf("unexpected cost table: %+v", result.Costs)
	}
}

func TestErrorBodiesMatchContract(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   map[string]string
	}{
		{
			name:   "insufficient credits",
			err:    fmt.Errorf("debit: %w", credits.ErrInsufficientCredits),
			status: http.StatusPaymentRequired,
			body:   map[string]string{"error": "Insufficient credits"},
		},
		{
			name:   "internal failure is not leaked",
			err:    errors.New("pq: connection refused"),
			status: http.StatusInternalServerError,
			body:   map[string]string{"error": "Internal server error"},
		},
		{
			name:   "upstream failure carries details",
			err:    &agent.Error{Status: 500, Message: "voice model crashed", Details: "render stack overflow"},
			status: http.StatusBadGateway,
			body:   map[string]string{"error": "generation service failed", "details": "render stack overflow"},
		},
		{
			name:   "upstream failure without details falls back to the message",
			err:    &agent.Error{Status: 503, Message: "overloaded"},
			status: http.StatusBadGateway,
			body:   map[string]string{"error": "generation service failed", "details": "overloaded"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d", rec.Code, tc.status)
			}
			var got map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if len(got) != len(tc.body) {
				t.Fatalf("body %v, want %v", got, tc.body)
			}
			for key, want := range tc.body {
				if got[key] != want {
					t.Fatalf("body[%s] = %q, want %q", key, got[key], want)
				}
			}
		})
	}
}

package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateVoiceReturnsGeneratorID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Voice_from_text" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generator_id":"gen-42","voice":"alloy"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := client.GenerateVoice(context.Background(), VoiceRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("generate voice: %v", err)
	}
	if res.GeneratorID != "gen-42" {
		t.Fatalf("unexpected generator id %q", res.GeneratorID)
	}
	if len(res.Raw) == 0 {
		t.Fatalf("expected raw payload to be kept")
	}
}

func TestGenerateVoiceRejectsMissingGeneratorID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"voice":"alloy"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	_, err := client.GenerateVoice(context.Background(), VoiceRequest{Text: "hello"})
	var agentErr *Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected agent error, got %v", err)
	}
}

func TestAgentErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model overloaded","details":"retry later"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	_, err := client.PredictCTR(context.Background(), CTRRequest{Title: "t"})
	var agentErr *Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected agent error, got %v", err)
	}
	if agentErr.Status != http.StatusServiceUnavailable || agentErr.Message != "model overloaded" {
		t.Fatalf("unexpected agent error: %+v", agentErr)
	}
}

func TestTimeoutMapsToErrTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.CritiqueComments(ctx, CritiqueRequest{VideoID: "v1"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerateSEOFallsBackToKeywordsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keywords":["shorts","howto"]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	res, err := client.GenerateSEO(context.Background(), SEORequest{Title: "t"})
	if err != nil {
		t.Fatalf("generate seo: %v", err)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "shorts" {
		t.Fatalf("unexpected tags: %v", res.Tags)
	}
}

func TestNextVideoIdeaParsesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Next_Video_Idea_Generator" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"title":"Why batteries die","description":"d","script":"s","plan":"p"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	res, err := client.NextVideoIdea(context.Background(), NextIdeaRequest{ChannelID: "UC1"})
	if err != nil {
		t.Fatalf("next idea: %v", err)
	}
	if res.Title != "Why batteries die" || res.Plan != "p" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

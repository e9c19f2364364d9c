package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"creatorhub/internal/app"
	"creatorhub/internal/ratelimit"
	"creatorhub/internal/servicetoken"
	"creatorhub/internal/usertoken"
	"creatorhub/internal/util"
	"creatorhub/pkg/agent"
	"creatorhub/pkg/credits"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App              *app.App
	TokenVerifier    *usertoken.Verifier
	CallbackVerifier *servicetoken.Verifier
	GenerateLimiter  *ratelimit.FixedWindowLimiter
	TrustedProxies   *util.TrustedProxies
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app              *app.App
	tokenVerifier    *usertoken.Verifier
	callbackVerifier *servicetoken.Verifier
	generateLimiter  *ratelimit.FixedWindowLimiter
	trustedProxies   *util.TrustedProxies
	mux              *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires the application")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("server requires a token verifier")
	}
	s := &Server{
		app:              cfg.App,
		tokenVerifier:    cfg.TokenVerifier,
		callbackVerifier: cfg.CallbackVerifier,
		generateLimiter:  cfg.GenerateLimiter,
		trustedProxies:   cfg.TrustedProxies,
		mux:              http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// users
	s.mux.Handle("/api/users/sync", s.authenticated(s.handleUserSync))
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/credits/costs", s.authenticated(s.handleCreditCosts))

	// channels
	s.mux.Handle("/api/channels", s.authenticated(s.handleConnectChannel))
	s.mux.Handle("/api/channels/check", s.authenticated(s.handleChannelCheck))
	s.mux.Handle("/api/channels/me", s.authenticated(s.handleMyChannels))
	s.mux.Handle("/api/channels/gaps", s.authenticated(s.handleChannelGaps))
	s.mux.Handle("/api/youtube/channels/search", s.authenticated(s.handleChannelSearch))

	// video ideas
	s.mux.Handle("/api/ideas", s.authenticated(s.handleIdeas))
	s.mux.Handle("/api/ideas/generate-next", s.authenticated(s.handleGenerateNextIdea))
	s.mux.Handle("/api/ideas/", s.authenticated(s.handleIdeaByID))

	// media & insights
	s.mux.Handle("/api/audio/generate", s.authenticated(s.handleGenerateAudio))
	s.mux.Handle("/api/assets", s.authenticated(s.handleAssets))
	s.mux.Handle("/api/reels", s.authenticated(s.handleReels))
	s.mux.Handle("/api/jobs/", s.authenticated(s.handleJobStatus))
	s.mux.Handle("/api/ctr/predict", s.authenticated(s.handlePredictCTR))
	s.mux.Handle("/api/videos/comments/critique", s.authenticated(s.handleCritiqueComments))

	// billing
	s.mux.Handle("/api/billing/packs", s.authenticated(s.handleBillingPacks))
	s.mux.Handle("/api/billing/payment-intent", s.authenticated(s.handlePaymentIntent))
	s.mux.Handle("/api/billing/credit", s.authenticated(s.handleBillingCredit))

	// agent callbacks
	s.mux.Handle("/internal/assets/complete", s.internalOnly(s.handleAssetComplete))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, usertoken.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			s.audit(r, "api.token.verify", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.tokenVerifier.Verify(token)
		if err != nil {
			s.audit(r, "api.token.verify", "fail", "reason", "invalid_signature_or_claims")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

func (s *Server) internalOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.callbackVerifier == nil {
			s.audit(r, "api.internal.authorize", "fail", "reason", "callbacks_disabled")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			s.audit(r, "api.internal.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.callbackVerifier.Verify(token); err != nil {
			s.audit(r, "api.internal.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

// allowGenerate applies the shared limit for agent-backed endpoints.
func (s *Server) allowGenerate(w http.ResponseWriter, r *http.Request, userID string) bool {
	if s.generateLimiter == nil {
		return true
	}
	if s.generateLimiter.Allow(userID) {
		return true
	}
	s.audit(r, "api.generate", "rate_limited", "user_id", userID)
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many generation requests")
	return false
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

// writeAppError maps application errors onto the HTTP status taxonomy.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrChannelNotFound),
		errors.Is(err, app.ErrIdeaNotFound),
		errors.Is(err, app.ErrAssetNotFound),
		errors.Is(err, app.ErrJobNotFound),
		errors.Is(err, credits.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, credits.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, app.ErrPaymentNotCompleted):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrPaymentMismatch):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, agent.ErrTimeout):
		writeError(w, http.StatusRequestTimeout, "generation timed out")
	default:
		var agentErr *agent.Error
		if errors.As(err, &agentErr) {
			details := agentErr.Details
			if details == "" {
				details = agentErr.Message
			}
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":   "generation service failed",
				"details": details,
			})
			return
		}
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}

// pathTail returns the path segment after the given prefix, without any
// trailing subpath.
func pathTail(r *http.Request, prefix string) (string, string) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

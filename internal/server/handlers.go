package server

import (
	"net/http"
	"strconv"
	"strings"

	"creatorhub/internal/app"
	"creatorhub/internal/usertoken"
	"creatorhub/pkg/credits"
)

// users

func (s *Server) handleUserSync(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.SyncUser(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.GetMe(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreditCosts(w http.ResponseWriter, r *http.Request, _ usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"costs": credits.CostTable()})
}

// channels

func (s *Server) handleChannelCheck(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	overview, err := s.app.CheckChannels(r.Context(), id.UserID, r.Header.Get("X-Google-Token"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleConnectChannel(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ChannelID string `json:"channelId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	channel, created, err := s.app.ConnectChannel(r.Context(), id.UserID, req.ChannelID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"channel": channel, "created": created})
}

func (s *Server) handleMyChannels(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	channels, err := s.app.MyChannels(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (s *Server) handleChannelSearch(w http.ResponseWriter, r *http.Request, _ usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	infos, err := s.app.SearchChannels(r.Context(), r.URL.Query().Get("q"), maxResults)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": infos})
}

func (s *Server) handleChannelGaps(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowGenerate(w, r, id.UserID) {
		return
	}
	var req struct {
		ChannelID   string   `json:"channelId"`
		Competitors []string `json:"competitors"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	analysis, err := s.app.AnalyzeGaps(r.Context(), id.UserID, req.ChannelID, req.Competitors)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// video ideas

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	switch r.Method {
	case http.MethodGet:
		ideas, err := s.app.ListIdeas(r.Context(), id.UserID, r.URL.Query().Get("channelId"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ideas": ideas})
	case http.MethodPost:
		var req struct {
			ChannelID string `json:"channelId"`
			app.IdeaInput
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		idea, err := s.app.CreateIdea(r.Context(), id.UserID, req.ChannelID, req.IdeaInput)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, idea)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleIdeaByID(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	ideaID, rest := pathTail(r, "/api/ideas/")
	if ideaID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if rest == "generate-seo" {
		s.handleGenerateSEO(w, r, id, ideaID)
		return
	}
	if rest != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		idea, err := s.app.GetIdea(r.Context(), id.UserID, ideaID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, idea)
	case http.MethodPut, http.MethodPatch:
		var input app.IdeaInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		idea, err := s.app.UpdateIdea(r.Context(), id.UserID, ideaID, input)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, idea)
	case http.MethodDelete:
		if err := s.app.DeleteIdea(r.Context(), id.UserID, ideaID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGenerateNextIdea(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowGenerate(w, r, id.UserID) {
		return
	}
	var req struct {
		ChannelID string `json:"channelId"`
		Prompt    string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.GenerateNextIdea(r.Context(), id.UserID, req.ChannelID, req.Prompt)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGenerateSEO(w http.ResponseWriter, r *http.Request, id usertoken.Identity, ideaID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowGenerate(w, r, id.UserID) {
		return
	}
	res, err := s.app.GenerateSEO(r.Context(), id.UserID, ideaID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// media

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowGenerate(w, r, id.UserID) {
		return
	}
	var req struct {
		ChannelID string `json:"channelId"`
		Text      string `json:"text"`
		VoiceID   string `json:"voiceId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.GenerateAudio(r.Context(), id.UserID, req.ChannelID, req.Text, req.VoiceID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	assets, err := s.app.ListAssets(r.Context(), id.UserID, r.URL.Query().Get("channelId"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (s *Server) handleReels(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	switch r.Method {
	case http.MethodGet:
		reels, err := s.app.ListReels(r.Context(), id.UserID, r.URL.Query().Get("channelId"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reels": reels})
	case http.MethodPost:
		var req struct {
			ChannelID string `json:"channelId"`
			app.ReelInput
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		reel, err := s.app.CreateReel(r.Context(), id.UserID, req.ChannelID, req.ReelInput)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, reel)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	generatorID, rest := pathTail(r, "/api/jobs/")
	if generatorID == "" || rest != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	status, err := s.app.JobStatus(r.Context(), id.UserID, generatorID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// insights

func (s *Server) handlePredictCTR(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowGenerate(w, r, id.UserID) {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Thumbnail   string `json:"thumbnail"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	analysis, err := s.app.PredictCTR(r.Context(), id.UserID, req.Title, req.Description, req.Thumbnail)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleCritiqueComments(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowGenerate(w, r, id.UserID) {
		return
	}
	var req struct {
		VideoID string `json:"videoId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.CritiqueComments(r.Context(), req.VideoID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// billing

func (s *Server) handleBillingPacks(w http.ResponseWriter, r *http.Request, _ usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packs": s.app.ListPacks(r.Context())})
}

func (s *Server) handlePaymentIntent(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		PackID string `json:"packId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	intent, err := s.app.CreatePaymentIntent(r.Context(), id.UserID, req.PackID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"intentId":     intent.ID,
		"clientSecret": intent.ClientSecret,
	})
}

func (s *Server) handleBillingCredit(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		IntentID string `json:"intentId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.CreditPurchase(r.Context(), id.UserID, req.IntentID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.billing.credit", "success", "user_id", id.UserID, "pack", res.Pack.ID)
	writeJSON(w, http.StatusOK, res)
}

// agent callbacks

func (s *Server) handleAssetComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		GeneratorID string `json:"generatorId"`
		Success     bool   `json:"success"`
		URL         string `json:"url"`
		Error       string `json:"error"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	asset, err := s.app.CompleteAsset(r.Context(), strings.TrimSpace(req.GeneratorID), req.Success, req.URL, req.Error)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

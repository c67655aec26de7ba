package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"charteye/pkg/charteye"
)

const maxListLimit = 1000

var errEmptyBody = errors.New("empty request body")

func (h *handler) analyzePortfolio(w http.ResponseWriter, r *http.Request) {
	var payload portfolioPayload
	if err := h.decodeJSON(w, r, &payload); err != nil || len(payload.Holdings) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid holdings data")
		return
	}
	result, err := h.core.AnalyzePortfolio(r.Context(), payload.Holdings)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) analyzeRisk(w http.ResponseWriter, r *http.Request) {
	var payload riskPayload
	if err := h.decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing or invalid trade setup data")
		return
	}
	setup, ok := decodeObject(payload.TradeSetup)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid trade setup data")
		return
	}
	result, err := h.core.AnalyzeRisk(r.Context(), charteye.TradeSetup(setup))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) analyzeEconomicNews(w http.ResponseWriter, r *http.Request) {
	var payload economicNewsPayload
	if err := h.decodeJSON(w, r, &payload); err != nil || len(payload.NewsItems) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid news items")
		return
	}
	items := make([]string, 0, len(payload.NewsItems))
	for _, raw := range payload.NewsItems {
		if item := newsItemText(raw); item != "" {
			items = append(items, item)
		}
	}
	result, err := h.core.AnalyzeEconomicNews(r.Context(), items)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) analyzeJournal(w http.ResponseWriter, r *http.Request) {
	var payload journalPayload
	if err := h.decodeJSON(w, r, &payload); err != nil || len(payload.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "Missing or invalid journal entries")
		return
	}
	result, err := h.core.AnalyzeJournal(r.Context(), payload.Entries)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) generateIndicator(w http.ResponseWriter, r *http.Request) {
	var payload indicatorPayload
	if err := h.decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	result, err := h.core.GenerateIndicator(r.Context(), charteye.IndicatorRequest{
		UserID:      userIDFrom(r.Context()),
		Name:        payload.Name,
		Language:    payload.Language,
		Description: payload.Description,
		IsPublic:    payload.IsPublic,
	})
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) listIndicators(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.ListIndicators(userIDFrom(r.Context()))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	if result == nil {
		result = []charteye.IndicatorCode{}
	}
	writeJSON(w, http.StatusOK, indicatorsResponse{Indicators: result})
}

func (h *handler) tradingInsights(w http.ResponseWriter, r *http.Request) {
	var payload messagePayload
	if err := h.decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing message content")
		return
	}
	result, err := h.core.TradingInsights(r.Context(), payload.Message)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) liveNews(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.LiveNews(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) newsChat(w http.ResponseWriter, r *http.Request) {
	var payload newsChatPayload
	if err := h.decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing message")
		return
	}
	result, err := h.core.NewsChat(r.Context(), charteye.NewsChatRequest{
		Message:  payload.Message,
		Currency: payload.Currency,
		History:  payload.History,
	})
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) userAnalyses(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	analyses, err := h.core.ListUserAnalyses(userID, limit)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	total, err := h.core.CountUserAnalyses(userID)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	if analyses == nil {
		analyses = []charteye.ChartAnalysis{}
	}
	writeJSON(w, http.StatusOK, analysesResponse{Analyses: analyses, Total: total})
}

func (h *handler) userProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.core.GetUserProfile(userIDFrom(r.Context()))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// decodeJSON decodes a size-limited JSON body.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxJSONBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeObject accepts only a non-empty JSON object.
func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(trimmed, &out); err != nil || len(out) == 0 {
		return nil, false
	}
	return out, true
}

// newsItemText accepts either a string or an object describing a news item.
func newsItemText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	if s := buf.String(); s != "null" {
		return s
	}
	return ""
}

// parseIntDefault parses a positive limit, capped at maxListLimit.
func parseIntDefault(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

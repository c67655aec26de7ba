package api

import (
	"errors"
	"net/http"
	"strings"

	"charteye/internal/auth"
)

func (h *handler) createPaymentLink(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := h.decodeJSON(w, r, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, ok := h.paymentUser(w, r, payload.Token)
	if !ok {
		return
	}
	link, err := h.core.CreatePaymentLink(r.Context(), userID)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentLink": link})
}

func (h *handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := h.decodeJSON(w, r, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, ok := h.paymentUser(w, r, payload.Token)
	if !ok {
		return
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if _, err := h.core.VerifyPayment(r.Context(), userID, payload.OrderID); err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handler) testUpgrade(w http.ResponseWriter, r *http.Request) {
	var payload testUpgradePayload
	if err := h.decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing userId")
		return
	}
	profile, err := h.core.TestUpgrade(payload.UserID, payload.TestKey)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account upgraded to Premium",
		"profile": profile,
	})
}

// paymentUser resolves the caller from the body token or the bearer header.
func (h *handler) paymentUser(w http.ResponseWriter, r *http.Request, bodyToken string) (string, bool) {
	token := strings.TrimSpace(bodyToken)
	if token == "" {
		token = auth.BearerToken(r)
	}
	userID, err := h.authenticate(token)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingToken) {
			h.logger.Warn("payment authentication failed", "err", err)
		}
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return "", false
	}
	return userID, true
}

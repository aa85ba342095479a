package push

import (
	"encoding/json"
	"net/http"

	"github.com/bigbite/order-service/pkg/models"
	"github.com/sirupsen/logrus"
)

// Handler exposes device token registration over HTTP.
type Handler struct {
	tokens *TokenStore
	logger *logrus.Logger
}

func NewHandler(tokens *TokenStore, logger *logrus.Logger) *Handler {
	return &Handler{tokens: tokens, logger: logger}
}

func (h *Handler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID int64  `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respond(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: "Invalid request body"})
		return
	}
	if body.UserID <= 0 || body.Token == "" {
		h.respond(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: "user_id and token are required"})
		return
	}

	if err := h.tokens.Save(r.Context(), body.UserID, body.Token); err != nil {
		h.logger.WithError(err).Error("Failed to save device token")
		h.respond(w, http.StatusInternalServerError, models.APIResponse{Success: false, Message: "Failed to save device token"})
		return
	}

	h.logger.WithField("user_id", body.UserID).Info("Device token registered")
	h.respond(w, http.StatusOK, models.APIResponse{Success: true, Message: "Device token registered!"})
}

func (h *Handler) respond(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

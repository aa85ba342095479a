package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bigbite/order-service/pkg/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ReadStore interface {
	UnreadNotifications(ctx context.Context, receiverID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context, receiverID int64) error
}

// Handler serves notification retrieval and read-flag updates.
type Handler struct {
	store  ReadStore
	logger *logrus.Logger
}

func NewHandler(store ReadStore, logger *logrus.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	receiverID, err := strconv.ParseInt(mux.Vars(r)["receiverId"], 10, 64)
	if err != nil {
		h.respond(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: "Invalid receiver id"})
		return
	}

	notifications, err := h.store.UnreadNotifications(r.Context(), receiverID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch notifications")
		h.respond(w, http.StatusInternalServerError, models.APIResponse{Success: false, Message: "Failed to fetch notifications"})
		return
	}

	h.respond(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Notifications fetched successfully!",
		Data:    notifications,
	})
}

func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := strconv.ParseInt(mux.Vars(r)["notificationId"], 10, 64)
	if err != nil {
		h.respond(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: "Invalid notification id"})
		return
	}

	if err := h.store.MarkNotificationRead(r.Context(), notificationID); err != nil {
		h.logger.WithError(err).Error("Failed to mark notification as read")
		h.respond(w, http.StatusInternalServerError, models.APIResponse{Success: false, Message: "Failed to update notification"})
		return
	}

	h.respond(w, http.StatusOK, models.APIResponse{Success: true, Message: "Notification marked as read!"})
}

func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	receiverID, err := strconv.ParseInt(mux.Vars(r)["receiverId"], 10, 64)
	if err != nil {
		h.respond(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: "Invalid receiver id"})
		return
	}

	if err := h.store.MarkAllNotificationsRead(r.Context(), receiverID); err != nil {
		h.logger.WithError(err).Error("Failed to mark notifications as read")
		h.respond(w, http.StatusInternalServerError, models.APIResponse{Success: false, Message: "Failed to update notifications"})
		return
	}

	h.respond(w, http.StatusOK, models.APIResponse{Success: true, Message: "Notifications marked as read!"})
}

func (h *Handler) respond(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

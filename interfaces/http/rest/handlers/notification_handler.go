package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"askingwho-backend/application/services"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// NotificationHandler handles the caller's notification inbox
type NotificationHandler struct {
	notifier   *services.NotificationDispatcher
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifier *services.NotificationDispatcher, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifier: notifier, errHandler: errHandler, logger: logger}
}

// ClearResponse reports how many notifications a bulk operation touched
type ClearResponse struct {
	Affected int    `json:"affected"`
	Message  string `json:"message"`
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > common.MaxPageLimit {
		limit = common.MaxPageLimit
	}

	views, err := h.notifier.List(r.Context(), user.UserID, limit)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

// MarkRead handles PATCH /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	id, err := pathParam(r, "id")
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	if err := h.notifier.MarkRead(r.Context(), id, user.UserID); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondMessage(w, http.StatusOK, "Notification marked as read")
}

// MarkAllRead handles PATCH /api/notifications/clear
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	n, err := h.notifier.MarkAllRead(r.Context(), user.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ClearResponse{Affected: n, Message: "All notifications marked as read"})
}

// DeleteAll handles DELETE /api/notifications/clear
func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	n, err := h.notifier.DeleteAll(r.Context(), user.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	h.logger.Debug("Notifications cleared", zap.String("userID", user.UserID), zap.Int("count", n))
	common.RespondJSON(w, http.StatusOK, ClearResponse{Affected: n, Message: "All notifications deleted"})
}

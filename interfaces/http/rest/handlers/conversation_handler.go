package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"askingwho-backend/application/services"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// ConversationHandler handles conversations and direct messages
type ConversationHandler struct {
	messaging  *services.MessagingService
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(messaging *services.MessagingService, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{messaging: messaging, errHandler: errHandler, logger: logger}
}

// StartConversationRequest represents the request body for starting a conversation
type StartConversationRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// SendMessageRequest represents the request body for sending a message.
// ReceiverID is optional and must name the other participant when given.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Text           string `json:"text" validate:"required"`
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	views, err := h.messaging.ListConversations(r.Context(), user.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

// Start handles POST /api/conversations/start
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req StartConversationRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	view, err := h.messaging.StartConversation(r.Context(), user.UserID, req.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// Messages handles GET /api/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.messaging.ListMessages(r.Context(), id, user.UserID, common.ExtractPageRequest(r, services.DefaultMessageLimit))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, page)
}

// SendMessage handles POST /api/messages/send
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req SendMessageRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	msg, err := h.messaging.SendMessage(r.Context(), req.ConversationID, user.UserID, req.ReceiverID, req.Text)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, msg)
}

// MarkRead handles PATCH /api/messages/{id}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
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

	if err := h.messaging.MarkMessageRead(r.Context(), id, user.UserID); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondMessage(w, http.StatusOK, "Message marked as read")
}

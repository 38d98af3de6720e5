package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"askingwho-backend/application/services"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// QuestionHandler handles the question lifecycle endpoints
type QuestionHandler struct {
	engagement *services.EngagementService
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(engagement *services.EngagementService, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *QuestionHandler {
	return &QuestionHandler{engagement: engagement, errHandler: errHandler, logger: logger}
}

// SendQuestionRequest represents the request body for asking a question.
// The recipient is named either by username or by id.
type SendQuestionRequest struct {
	ToUsername  string `json:"toUsername,omitempty" validate:"required_without=To"`
	To          string `json:"to,omitempty" validate:"required_without=ToUsername"`
	Text        string `json:"text" validate:"required"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// AnswerRequest represents the request body for answering a question
type AnswerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// CommentRequest represents the request body for commenting on a question
type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// LikeResponse carries the like count after a like change
type LikeResponse struct {
	QuestionID string `json:"questionId"`
	Likes      int    `json:"likes"`
}

// SendQuestion handles POST /api/questions/send
func (h *QuestionHandler) SendQuestion(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	var req SendQuestionRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	ctx := r.Context()
	if req.ToUsername != "" {
		q, err := h.engagement.SendQuestionTo(ctx, user.UserID, req.ToUsername, req.Text, req.IsAnonymous)
		if err != nil {
			h.errHandler.Handle(w, r, err)
			return
		}
		common.RespondJSON(w, http.StatusCreated, q)
		return
	}
	q, err := h.engagement.SendQuestion(ctx, user.UserID, req.To, req.Text, req.IsAnonymous)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, q)
}

// ListUnanswered handles GET /api/questions/unanswered
func (h *QuestionHandler) ListUnanswered(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	views, err := h.engagement.ListUnanswered(r.Context(), user.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

// ListAnswered handles GET /api/questions/answered/{username}
func (h *QuestionHandler) ListAnswered(w http.ResponseWriter, r *http.Request) {
	username, err := pathParam(r, "username")
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	page, err := h.engagement.ListAnswered(r.Context(), username, common.ExtractPageRequest(r, services.DefaultAnsweredLimit))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, page)
}

// Get handles GET /api/questions/{id}
func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	view, err := h.engagement.Get(r.Context(), id)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// Answer handles PATCH /api/questions/{id}/answer
func (h *QuestionHandler) Answer(w http.ResponseWriter, r *http.Request) {
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
	var req AnswerRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	q, err := h.engagement.Answer(r.Context(), id, user.UserID, req.Answer)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, q)
}

// Like handles POST /api/questions/{id}/like
func (h *QuestionHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.changeLike(w, r, h.engagement.Like)
}

// Unlike handles POST /api/questions/{id}/unlike
func (h *QuestionHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.changeLike(w, r, h.engagement.Unlike)
}

type likeFunc func(ctx context.Context, questionID, userID string) (int, error)

func (h *QuestionHandler) changeLike(w http.ResponseWriter, r *http.Request, apply likeFunc) {
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

	count, err := apply(r.Context(), id, user.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, LikeResponse{QuestionID: id, Likes: count})
}

// Comment handles POST /api/questions/{id}/comment
func (h *QuestionHandler) Comment(w http.ResponseWriter, r *http.Request) {
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
	var req CommentRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	comment, err := h.engagement.Comment(r.Context(), id, user.UserID, req.Text)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /api/questions/{id}
func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.engagement.Delete(r.Context(), id, user.UserID); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondMessage(w, http.StatusOK, "Question deleted")
}

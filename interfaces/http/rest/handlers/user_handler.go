package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"askingwho-backend/application/services"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/pkg/auth"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// UserHandler handles follow edges and profile views
type UserHandler struct {
	graph      *services.SocialGraphService
	aggregates *services.AggregateService
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	graph *services.SocialGraphService,
	aggregates *services.AggregateService,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		graph:      graph,
		aggregates: aggregates,
		errHandler: errHandler,
		logger:     logger,
	}
}

// FollowResponse reports the target of a follow change
type FollowResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Follow handles POST /api/users/{username}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	username, err := pathParam(r, "username")
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	target, err := h.graph.Follow(r.Context(), user.UserID, username)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, FollowResponse{
		UserID:   target.ID,
		Username: target.Username,
		Message:  "Followed " + target.Username,
	})
}

// Unfollow handles POST /api/users/{username}/unfollow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	username, err := pathParam(r, "username")
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	target, err := h.graph.Unfollow(r.Context(), user.UserID, username)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, FollowResponse{
		UserID:   target.ID,
		Username: target.Username,
		Message:  "Unfollowed " + target.Username,
	})
}

// GetProfile handles GET /api/users/{username}. Guests see what the owner's
// privacy settings allow everyone to see.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username, err := pathParam(r, "username")
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	view, err := h.aggregates.ProfileView(r.Context(), username, auth.GetUserID(r.Context()))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// SearchResponse carries the match of a username lookup, null when absent
type SearchResponse struct {
	User *entities.ProfileSummary `json:"user"`
}

// Search handles GET /api/users/search?username=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	match, err := h.aggregates.FindUser(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, SearchResponse{User: match})
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	profile, err := h.aggregates.OwnProfile(r.Context(), user.UserID)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, profile)
}

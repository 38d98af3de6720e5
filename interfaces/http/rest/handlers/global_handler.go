package handlers

import (
	"net/http"

	"askingwho-backend/application/services"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// GlobalHandler serves the public aggregate views
type GlobalHandler struct {
	aggregates *services.AggregateService
	errHandler *pkgerrors.ErrorHandler
}

// NewGlobalHandler creates a new global handler
func NewGlobalHandler(aggregates *services.AggregateService, errHandler *pkgerrors.ErrorHandler) *GlobalHandler {
	return &GlobalHandler{aggregates: aggregates, errHandler: errHandler}
}

// Leaderboard handles GET /api/global/leaderboard
func (h *GlobalHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.aggregates.Leaderboard(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, board)
}

// Feed handles GET /api/global/feed
func (h *GlobalHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, err := h.aggregates.Feed(r.Context(), common.ExtractPageRequest(r, services.DefaultAnsweredLimit))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, page)
}

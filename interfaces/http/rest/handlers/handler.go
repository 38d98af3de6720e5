package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"askingwho-backend/pkg/auth"
	pkgerrors "askingwho-backend/pkg/errors"
	"askingwho-backend/pkg/utils"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 64 << 10

// decodeRequest reads a JSON body into dst and runs its validate tags
func decodeRequest(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.NewValidationError("Request body is required")
		}
		return pkgerrors.NewValidationError("Invalid request body: " + err.Error())
	}
	return utils.ValidateStruct(dst)
}

// requireUser returns the authenticated caller. The auth middleware guarantees
// one on protected routes.
func requireUser(r *http.Request) (*auth.UserContext, error) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok || user.UserID == "" {
		return nil, pkgerrors.NewUnauthorizedError("Unauthorized")
	}
	return user, nil
}

func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if v == "" {
		return "", pkgerrors.NewValidationError(name + " is required")
	}
	return v, nil
}

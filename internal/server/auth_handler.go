package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/server/middleware"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService *UserService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService *UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// SyncUserResponse is the body of a successful sync.
type SyncUserResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// SyncUser creates the local row for the authenticated user if needed.
func (h *AuthHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, middleware.InvalidAuthMessage)
		return
	}

	status, err := h.userService.Sync(r.Context(), userID)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("user sync failed")
		writeError(w, http.StatusInternalServerError, "Failed to sync user data")
		return
	}

	writeJSON(w, http.StatusOK, SyncUserResponse{OK: true, Status: status})
}

// extractValidationErrors converts validator errors into an ErrValidation
// naming the first failing field.
func extractValidationErrors(err error) *ErrValidation {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return &ErrValidation{Field: ve.Field(), Message: ve.Tag()}
	}
	return &ErrValidation{Field: "request", Message: "invalid request"}
}

package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/movienight/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeBodyTooLarge       = "BODY_TOO_LARGE"
	CodeInvalidIdentifier  = "INVALID_IDENTIFIER"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeMovieAlreadyAdded  = "MOVIE_ALREADY_ADDED"
	CodeConflict           = "CONFLICT"
	CodeNotMember          = "NOT_MEMBER"
	CodeInvalidState       = "INVALID_STATE"
	CodeNoMovies           = "NO_MOVIES"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Domain errors first, they are more specific than their kind
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrGroupNotExist):
		return &httpError{http.StatusNotFound, APIError{CodeGroupNotFound, "Group not found"}}
	case errors.Is(err, model.ErrUsernameTaken):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}
	case errors.Is(err, model.ErrMovieAlreadyAdded):
		return &httpError{http.StatusConflict, APIError{CodeMovieAlreadyAdded, "Movie already added"}}
	case errors.Is(err, model.ErrNoMovies):
		return &httpError{http.StatusConflict, APIError{CodeNoMovies, "Add a movie before voting"}}
	}

	switch model.KindOf(err) {
	case model.KindNotFound:
		return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
	case model.KindConflict:
		return &httpError{http.StatusConflict, APIError{CodeConflict, "Conflicting update, try again"}}
	case model.KindAuthFailure:
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case model.KindExpired:
		return &httpError{http.StatusUnauthorized, APIError{CodeTokenExpired, "Token has expired"}}
	case model.KindInvalidToken:
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid token"}}
	case model.KindInvalidIdentifier:
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidIdentifier, "Malformed username or group id"}}
	case model.KindValidation:
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, validationMessage(err)}}
	case model.KindNotMember:
		return &httpError{http.StatusForbidden, APIError{CodeNotMember, "Not a member of this group"}}
	case model.KindInvalidState:
		return &httpError{http.StatusConflict, APIError{CodeInvalidState, "Not allowed in the group's current state"}}
	case model.KindStorage:
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStorageUnavailable, "Storage unavailable"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

func validationMessage(err error) string {
	var e *model.Error
	if errors.As(err, &e) && e.Context != "" {
		return e.Context
	}
	return "Invalid request"
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewBodyTooLargeError reports a request body over the accepted size
func NewBodyTooLargeError(message string) error {
	return &httpError{http.StatusRequestEntityTooLarge, APIError{CodeBodyTooLarge, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

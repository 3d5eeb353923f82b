package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

// SuccessResponse is the envelope for every 2xx body.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the envelope for every error body. Code carries the domain
// error code when there is one.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:         http.StatusBadRequest,
	domain.ErrCodeInvalidSearchQuery: http.StatusBadRequest,
	domain.ErrCodeNotFound:           http.StatusNotFound,
	domain.ErrCodeForbidden:          http.StatusForbidden,
	domain.ErrCodeInvalidOperation:   http.StatusConflict,
	domain.ErrCodeEmbedding:          http.StatusBadGateway,
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	// The status line is already out; a failed encode can only truncate the body.
	_ = json.NewEncoder(w).Encode(body)
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP picks the status for err. A search failure counts as a
// bad gateway when the embedding provider caused it.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	if de.Code == domain.ErrCodeSearch && domain.IsEmbeddingError(err) {
		return http.StatusBadGateway
	}
	if status, ok := statusByCode[de.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an ErrorResponse. Errors outside the domain
// taxonomy are reported only by their status text.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	var de *domain.DomainError
	if errors.As(err, &de) {
		JSON(w, status, ErrorResponse{Error: de.Message, Code: de.Code})
		return
	}
	JSON(w, status, ErrorResponse{Error: http.StatusText(status)})
}

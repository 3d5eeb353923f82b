package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidOperation   = "INVALID_OPERATION"
	ErrCodeInvalidSearchQuery = "INVALID_SEARCH_QUERY"
	ErrCodeEmbedding          = "EMBEDDING_ERROR"
	ErrCodeSearch             = "SEARCH_ERROR"
)

// Not found errors
var (
	ErrKnowledgeNotFound    = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrEmbeddingJobNotFound = NewDomainError(ErrCodeNotFound, "embedding job not found")
)

// Operation errors
var (
	ErrCannotPublishArchived = NewDomainError(ErrCodeInvalidOperation, "cannot publish archived knowledge")
	ErrCannotModifyArchived  = NewDomainError(ErrCodeInvalidOperation, "cannot modify archived knowledge")
	ErrForbiddenRole         = NewDomainError(ErrCodeForbidden, "role is not allowed to perform this operation")
)

// NewInvalidSearchQueryError reports a query rejected before any backend call.
func NewInvalidSearchQueryError(message string) *DomainError {
	return NewDomainError(ErrCodeInvalidSearchQuery, message)
}

// NewEmbeddingError reports a failure to turn text into a vector.
func NewEmbeddingError(message string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, message, cause)
}

// NewSearchError wraps a backend or embedding failure raised during a search.
func NewSearchError(message string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSearch, message, cause)
}

// HasCode reports whether any DomainError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

func IsInvalidSearchQuery(err error) bool {
	return HasCode(err, ErrCodeInvalidSearchQuery)
}

func IsEmbeddingError(err error) bool {
	return HasCode(err, ErrCodeEmbedding)
}

func IsSearchError(err error) bool {
	return HasCode(err, ErrCodeSearch)
}

func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

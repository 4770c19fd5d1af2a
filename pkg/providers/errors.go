package providers

import (
	"errors"
	"fmt"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type Category string

const (
	// CategoryAuthentication means the credential was rejected. Fatal for the run.
	CategoryAuthentication Category = "authentication_failure"

	// CategoryTransient covers timeouts, throttling and 5xx responses.
	CategoryTransient Category = "transient_provider_error"

	// CategoryUnavailable means one resource type cannot be discovered.
	CategoryUnavailable Category = "resource_type_unavailable"

	// CategorySessionExpired triggers a single re-authentication.
	CategorySessionExpired Category = "session_expired"
)

// Error is a classified provider failure.
type Error struct {
	Category     Category
	Provider     domain.ProviderKind
	ResourceType domain.ResourceType
	Message      string
	Underlying   error
}

func (e *Error) Error() string {
	if e.ResourceType != "" {
		return fmt.Sprintf("%s: %s: %s [resource type: %s]", e.Category, e.Provider, e.Message, e.ResourceType)
	}
	return fmt.Sprintf("%s: %s: %s", e.Category, e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func NewError(category Category, provider domain.ProviderKind, resourceType domain.ResourceType, message string, underlying error) *Error {
	return &Error{
		Category:     category,
		Provider:     provider,
		ResourceType: resourceType,
		Message:      message,
		Underlying:   underlying,
	}
}

func AuthenticationFailure(provider domain.ProviderKind, message string, err error) *Error {
	return NewError(CategoryAuthentication, provider, "", message, err)
}

func Transient(provider domain.ProviderKind, resourceType domain.ResourceType, message string, err error) *Error {
	return NewError(CategoryTransient, provider, resourceType, message, err)
}

func Unavailable(provider domain.ProviderKind, resourceType domain.ResourceType, message string, err error) *Error {
	return NewError(CategoryUnavailable, provider, resourceType, message, err)
}

func SessionExpired(provider domain.ProviderKind, resourceType domain.ResourceType, err error) *Error {
	return NewError(CategorySessionExpired, provider, resourceType, "session expired", err)
}

func IsCategory(err error, category Category) bool {
	if err == nil {
		return false
	}

	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Category == category
	}
	return false
}

// CategoryOf returns the category of err, or "" when err is unclassified.
func CategoryOf(err error) Category {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Category
	}
	return ""
}

package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryEmptySelection and CategoryUnknownIdentifier are client input errors.
	CategoryEmptySelection    ErrorCategory = "empty_selection"
	CategoryUnknownIdentifier ErrorCategory = "unknown_identifier"
	CategoryValidation        ErrorCategory = "validation"

	// CategorySourceUnavailable represents operational failures of the assembly engine.
	CategorySourceUnavailable ErrorCategory = "source_unavailable"
	CategoryCatalogRead       ErrorCategory = "catalog_read"
	CategorySizeExceeded      ErrorCategory = "size_exceeded"
	CategoryIO                ErrorCategory = "io"
	CategoryCanceled          ErrorCategory = "canceled"

	// CategoryRateLimited rejects requests over the configured download rate.
	CategoryRateLimited ErrorCategory = "rate_limited"

	// CategoryConfig represents configuration and startup errors.
	CategoryConfig   ErrorCategory = "config"
	CategorySync     ErrorCategory = "sync"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"     // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate" // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"   // Retry with exponential backoff
	RetryUserAction RetryStrategy = "user"      // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}

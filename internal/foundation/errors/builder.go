package errors

import (
	"context"
	stderrors "errors"
	"slices"
)

// ContextIdentifiers is the context key under which unknown identifiers are stored.
const ContextIdentifiers = "identifiers"

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithCause sets the underlying error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

// UserAction sets the retry strategy to require user action.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	return b.WithRetry(RetryUserAction)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Sentinels usable with errors.Is to test for a category anywhere in a chain.
var (
	ErrSourceUnavailable = &ClassifiedError{category: CategorySourceUnavailable}
	ErrCatalogRead       = &ClassifiedError{category: CategoryCatalogRead}
	ErrEmptySelection    = &ClassifiedError{category: CategoryEmptySelection}
	ErrUnknownIdentifier = &ClassifiedError{category: CategoryUnknownIdentifier}
	ErrSizeExceeded      = &ClassifiedError{category: CategorySizeExceeded}
	ErrIO                = &ClassifiedError{category: CategoryIO}
	ErrCanceled          = &ClassifiedError{category: CategoryCanceled}
)

// Convenience constructors for the packaging failure kinds

// SourceUnavailable reports a missing, unreadable, or malformed base template.
func SourceUnavailable(cause error) *ErrorBuilder {
	return WrapError(cause, CategorySourceUnavailable, "base template unavailable")
}

// CatalogReadFailure reports an unreadable module root.
func CatalogReadFailure(cause error) *ErrorBuilder {
	return WrapError(cause, CategoryCatalogRead, "module catalog unreadable")
}

// EmptySelection reports a selection with no identifiers.
func EmptySelection() *ErrorBuilder {
	return NewError(CategoryEmptySelection, "at least one module must be selected").UserAction()
}

// UnknownIdentifier reports every identifier that did not resolve.
func UnknownIdentifier(ids []string) *ErrorBuilder {
	return NewError(CategoryUnknownIdentifier, "unknown module identifiers").
		UserAction().
		WithContext(ContextIdentifiers, slices.Clone(ids))
}

// SizeExceeded reports injected content over the configured cap.
func SizeExceeded(limit int64) *ErrorBuilder {
	return NewError(CategorySizeExceeded, "selected modules exceed the size limit").
		WithContext("limit_bytes", limit)
}

// IOFailure reports an unexpected streaming failure, preserving the cause.
func IOFailure(op string, cause error) *ErrorBuilder {
	return WrapError(cause, CategoryIO, op+" failed")
}

// Canceled reports a request abandoned by its caller.
func Canceled(cause error) *ErrorBuilder {
	return WrapError(cause, CategoryCanceled, "request canceled")
}

// RateLimited reports a request rejected by the rate limiter.
func RateLimited() *ErrorBuilder {
	return NewError(CategoryRateLimited, "too many requests").WithRetry(RetryBackoff)
}

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).UserAction()
}

// SyncError creates a module synchronization error (typically retryable).
func SyncError(message string) *ErrorBuilder {
	return NewError(CategorySync, message).Retryable()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}

// FromContext converts a context error into a Canceled failure. Other
// errors are returned unchanged.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		if HasCategory(err, CategoryCanceled) {
			return err
		}
		return Canceled(err).Build()
	}
	return err
}

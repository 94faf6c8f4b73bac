package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAmbiguousSelection = errors.New("ambiguous selection")
	ErrUnsupportedInput   = errors.New("unsupported input")
	ErrUpstreamRejected   = errors.New("upstream rejected")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTimeout            = errors.New("timed out")
	ErrTransientNetwork   = errors.New("transient network error")
	ErrDatabase           = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func InvalidInputf(format string, args ...any) error {
	return NewAppError("INVALID_INPUT", fmt.Sprintf(format, args...), ErrInvalidInput)
}

func UnsupportedInputf(format string, args ...any) error {
	return NewAppError("UNSUPPORTED_INPUT", fmt.Sprintf(format, args...), ErrUnsupportedInput)
}

func UpstreamRejected(message string) error {
	return NewAppError("UPSTREAM_REJECTED", message, ErrUpstreamRejected)
}

// InternalError hides the cause of an unexpected failure from clients.
func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

// GRPCCode maps the error taxonomy onto gRPC status codes.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAmbiguousSelection), errors.Is(err, ErrUnsupportedInput):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrUpstreamRejected):
		return codes.FailedPrecondition
	case errors.Is(err, ErrInvalidCredentials):
		return codes.Unauthenticated
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, ErrTransientNetwork):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToGRPCStatus converts err into a gRPC status error. Errors that already carry a status pass through.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := GRPCCode(err)
	if code == codes.Internal {
		return InternalError("internal error")
	}
	return status.Error(code, err.Error())
}

package common

import (
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
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation failed")
)

// Verification errors. The first group aborts a request; the second group is
// recovered locally by the pipeline and only ever surfaces as a risk issue.
var (
	ErrInvalidImage      = errors.New("invalid image")
	ErrPersistence       = errors.New("persistence failed")
	ErrStaleVersion      = errors.New("stale record version")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrExtractionUnavailable = errors.New("extraction service unavailable")
	ErrForensicAnalysis      = errors.New("forensic analysis failed")
	ErrDuplicateScan         = errors.New("duplicate scan failed")
)

// Error codes carried by AppError.Code.
const (
	CodeConfig       = "CONFIG_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeInternal     = "INTERNAL"
	CodeInvalidImage = "INVALID_IMAGE"
	CodePersistence  = "PERSISTENCE_ERROR"
	CodeConflict     = "CONFLICT"
	CodeTransition   = "INVALID_TRANSITION"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeExtraction   = "EXTRACTION_UNAVAILABLE"
	CodeForensic     = "FORENSIC_ERROR"
	CodeDuplicate    = "DUPLICATE_SCAN_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidImage wraps a decode failure as ErrInvalidImage.
func InvalidImage(message string, cause error) error {
	return NewAppError(CodeInvalidImage, message, errors.Join(ErrInvalidImage, cause))
}

// Persistence wraps a store failure as ErrPersistence.
func Persistence(message string, cause error) error {
	return NewAppError(CodePersistence, message, errors.Join(ErrPersistence, cause))
}

// StaleVersion reports an optimistic-concurrency conflict on a record.
func StaleVersion(recordID string, expected, actual int) error {
	return NewAppError(CodeConflict,
		fmt.Sprintf("record %s is at version %d, expected %d", recordID, actual, expected),
		ErrStaleVersion)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps an application error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidImage), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrStaleVersion):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

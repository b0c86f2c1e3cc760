package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound    = errors.New("resource not found")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrInternal    = errors.New("internal server error")
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("service unavailable")
)

// Order workflow failures
var (
	ErrReferenceNotFound       = errors.New("referenced entity not found")
	ErrStockAssociationMissing = errors.New("medication not stocked at pharmacy")
	ErrEmployeeNotAtPharmacy   = errors.New("employee does not belong to pharmacy")
	ErrInsufficientStock       = errors.New("insufficient stock")
)

// AppError represents an application error with context
type AppError struct {
	Err        error          `json:"-"`
	Message    string         `json:"message"`
	Code       string         `json:"code"`
	StatusCode int            `json:"status_code"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Unavailable(message string) *AppError {
	return &AppError{
		Err:        ErrUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func Validation(details map[string]string) *AppError {
	d := make(map[string]any, len(details))
	for k, v := range details {
		d[k] = v
	}
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    d,
	}
}

// ReferenceNotFound reports that an entity named by a request does not exist.
// kind is one of customer, employee, pharmacy, medication or order.
func ReferenceNotFound(kind string, id int64) *AppError {
	return &AppError{
		Err:        ErrReferenceNotFound,
		Code:       "REFERENCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s %d not found", kind, id),
		StatusCode: http.StatusNotFound,
		Details:    map[string]any{"kind": kind, "id": id},
	}
}

func StockAssociationMissing(pharmacyID, medicationID int64) *AppError {
	return &AppError{
		Err:        ErrStockAssociationMissing,
		Code:       "STOCK_ASSOCIATION_MISSING",
		Message:    fmt.Sprintf("medication %d is not stocked at pharmacy %d", medicationID, pharmacyID),
		StatusCode: http.StatusNotFound,
		Details:    map[string]any{"pharmacy_id": pharmacyID, "medication_id": medicationID},
	}
}

func EmployeeNotAtPharmacy(employeeID, pharmacyID int64) *AppError {
	return &AppError{
		Err:        ErrEmployeeNotAtPharmacy,
		Code:       "EMPLOYEE_NOT_AT_PHARMACY",
		Message:    fmt.Sprintf("employee %d does not work at pharmacy %d", employeeID, pharmacyID),
		StatusCode: http.StatusUnprocessableEntity,
		Details:    map[string]any{"employee_id": employeeID, "pharmacy_id": pharmacyID},
	}
}

func InsufficientStock(requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("requested %d but only %d available", requested, available),
		StatusCode: http.StatusConflict,
		Details:    map[string]any{"requested": requested, "available": available},
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

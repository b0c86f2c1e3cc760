package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// DateLayout is the wire format for calendar dates in query strings.
const DateLayout = "2006-01-02"

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta contains list metadata
type Meta struct {
	Total int64 `json:"total"`
}

func write(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func success(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// JSON sends data in the response envelope
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: success(statusCode), Data: data})
}

// JSONWithMeta sends a list with its metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, meta *Meta) {
	write(w, statusCode, Response{Success: success(statusCode), Data: data, Meta: meta})
}

// Error sends an error response. Errors that are not an *errors.AppError
// become a 500 without leaking their text.
func Error(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = &errors.AppError{
			Code:       "INTERNAL_ERROR",
			Message:    "an unexpected error occurred",
			StatusCode: http.StatusInternalServerError,
		}
	}

	write(w, appErr.StatusCode, Response{
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// DecodeJSON decodes the request body into the provided struct
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body")
	}
	return nil
}

// URLParamInt64 parses a numeric chi URL parameter.
func URLParamInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errors.BadRequest("invalid " + name)
	}
	return id, nil
}

// QueryInt64 parses an optional numeric query parameter; nil when absent.
func QueryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.BadRequest("invalid " + name)
	}
	return &v, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter; nil when absent.
func QueryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, errors.BadRequest("invalid " + name + ", expected YYYY-MM-DD")
	}
	return &v, nil
}

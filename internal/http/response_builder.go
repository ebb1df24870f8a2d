// Package http serves the conti JSON API.
//
// This file implements the builder used by every handler to assemble a
// response: status, JSON body, HX-Trigger events and the HX-Replace-Url
// write-back of list query state.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data any) *ResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerExpenseChanged announces that an expense of a group changed state,
// e.g. "expense:created".
func (b *ResponseBuilder) TriggerExpenseChanged(event, groupID, expenseID string) *ResponseBuilder {
	return b.Trigger("expense:"+event, map[string]string{"group_id": groupID, "expense_id": expenseID})
}

// TriggerBalancesChanged tells list views of a group to refresh balances.
func (b *ResponseBuilder) TriggerBalancesChanged(groupID string) *ResponseBuilder {
	return b.Trigger("balances:refresh", map[string]string{"group_id": groupID})
}

// ReplaceURL writes the canonical list state back to the client's address
// bar without adding a history entry.
func (b *ResponseBuilder) ReplaceURL(path, rawQuery string) *ResponseBuilder {
	u := url.URL{Path: path, RawQuery: rawQuery}
	return b.Header("HX-Replace-Url", u.String())
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string `json:"error"`
	Field       string `json:"field,omitempty"`
	Discrepancy string `json:"discrepancy,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Package http serves the conti JSON API.
//
// This file holds the helpers that read caller identity, JSON bodies and
// typed fields out of a request.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"conti/internal/core"
	"conti/internal/query"
	"conti/internal/services"
	"conti/internal/split"
)

const (
	// HeaderUserID carries the caller identity set by the fronting proxy.
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"

	maxBodyBytes = 1 << 20
)

type callerKey struct{}

// errBadRequest marks a body that is not valid JSON.
var errBadRequest = errors.New("malformed request body")

// withCaller rejects requests without a caller identity and stores it in the context.
func withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeInput(r.Header.Get(HeaderUserID))
		if id == "" {
			ErrorResponse(http.StatusUnauthorized, "missing "+HeaderUserID+" header").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, id)))
	})
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(callerKey{}).(string)
	return id
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}

func invalidField(field string, err error) error {
	return &services.InputError{Field: field, Err: err}
}

// parseAmount reads a required decimal string; comma is accepted as the separator.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return decimal.Decimal{}, invalidField(field, services.ErrRequired)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, invalidField(field, core.ErrInvalidAmount)
	}
	return d, nil
}

// parseOptionalDate reads an ISO date; empty means zero.
func parseOptionalDate(field, raw string) (core.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, invalidField(field, fmt.Errorf("want YYYY-MM-DD: %w", err))
	}
	return d, nil
}

// parseParticipants converts wire participants, keeping values as decimals.
func parseParticipants(in []participantRequest) ([]split.Participant, error) {
	out := make([]split.Participant, 0, len(in))
	for i, p := range in {
		sp := split.Participant{ID: sanitizeInput(p.ID)}
		if p.Value != nil {
			d, err := parseAmount(fmt.Sprintf("participants[%d].value", i), *p.Value)
			if err != nil {
				return nil, err
			}
			sp.Value = &d
		}
		out = append(out, sp)
	}
	return out, nil
}

func parseMethod(raw string) (split.Method, error) {
	if strings.TrimSpace(raw) == "" {
		return split.Equal, nil
	}
	return split.ParseMethod(raw)
}

// listComposer rebuilds the list state of one request. It is immediate:
// a request carries the already debounced search text.
func (s *Server) listComposer(values url.Values, filters []query.FilterDef) (*query.Composer, error) {
	return query.FromValues(values, query.Options{
		PageSizes:       s.cfg.PageSizes,
		DefaultPageSize: s.cfg.DefaultPageSize,
		Filters:         filters,
		Immediate:       true,
	})
}

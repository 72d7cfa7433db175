package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/camziny/z-fit-2.0/internal/contexthelpers"
	"github.com/camziny/z-fit-2.0/internal/errors"
	"github.com/camziny/z-fit-2.0/internal/workout"
)

// maxRequestBodyBytes bounds the JSON bodies the API accepts.
const maxRequestBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes data as the response body with the given status.
func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "JSON encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decodeJSON decodes the request body into dst, rejecting unknown fields and trailing data. An empty body leaves
// dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request body: %w: %w", err, workout.ErrValidation)
	}
	if dec.More() {
		return fmt.Errorf("request body has trailing data: %w", workout.ErrValidation)
	}
	return nil
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)})
}

// handleError maps the workout error taxonomy onto HTTP statuses. Anything unexpected is a server error.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, workout.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workout.ErrInvalidState), errors.Is(err, workout.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, workout.ErrValidation):
		status = http.StatusUnprocessableEntity
	default:
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, "client error", slog.Int("status", status),
		slog.Any("error", err))
	app.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

// owner returns who new data of the request belongs to: the signed-in user, otherwise the visitor's anonymous key.
func owner(r *http.Request) workout.OwnerRef {
	ctx := r.Context()
	if userID := contexthelpers.AuthenticatedUserID(ctx); userID > 0 {
		return workout.UserOwner(userID)
	}
	return workout.AnonOwner(contexthelpers.AnonKey(ctx))
}

// canAccess reports whether the request may read or change data owned by o. A signed-in user keeps access to what
// they did anonymously on the same device.
func canAccess(r *http.Request, o workout.OwnerRef) bool {
	ctx := r.Context()
	if o.IsUser() {
		return o.UserID == contexthelpers.AuthenticatedUserID(ctx)
	}
	return o.AnonKey != "" && o.AnonKey == contexthelpers.AnonKey(ctx)
}

// parseIntParam parses the path parameter name. On failure it responds with 404 and returns false.
func (app *application) parseIntParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(r.PathValue(name))
	if err != nil || value < 0 {
		app.notFound(w, r)
		return 0, false
	}
	return value, true
}

// exerciseIDsQuery parses the repeated "exercise" query parameter. On failure it responds with 422 and returns
// false.
func (app *application) exerciseIDsQuery(w http.ResponseWriter, r *http.Request) ([]int, bool) {
	raw := r.URL.Query()["exercise"]
	ids := make([]int, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			app.handleError(w, r, fmt.Errorf("exercise id %q: %w", s, workout.ErrValidation))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

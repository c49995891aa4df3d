package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/session"
)

func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func jsonError(w http.ResponseWriter, statusCode int, message string) {
	jsonResponse(w, statusCode, map[string]string{"error": message})
}

// httpError classifies err against the sentinel kinds and writes the
// matching status. Unclassified errors stay opaque to the client.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrConflict):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrInvalid):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrConfigMissing), errors.Is(err, errs.ErrUnavailable):
		jsonError(w, http.StatusServiceUnavailable, err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", errs.ErrInvalid)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("path parameter %s: %w", name, errs.ErrInvalid)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func queryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// pageParams caps page sizes; listings never stream the whole table.
func pageParams(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	return limit, queryInt(r, "offset", 0)
}

// currentUser loads the account behind the request's session. The auth
// middleware has already verified the token, so a missing or vanished user
// is a forbidden condition, not a 500.
func (app *application) currentUser(r *http.Request) (*models.User, error) {
	userID, ok := session.GetUserID(r.Context())
	if !ok {
		return nil, fmt.Errorf("no session: %w", errs.ErrForbidden)
	}
	user, err := app.database.GetUser(userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("account gone: %w", errs.ErrForbidden)
		}
		return nil, err
	}
	return user, nil
}

func (app *application) handleRoot(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{
		"name":    "vibarr",
		"version": version,
	})
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// handleReadiness probes the backing stores. The response is always 200;
// orchestrators read the status field, humans read the checks.
func (app *application) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]bool{
		"database": app.database.Ping(ctx) == nil,
		"redis":    true,
	}
	if app.redis != nil {
		checks["redis"] = app.redis.Ping(ctx).Err() == nil
	}

	status := "ready"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			break
		}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}

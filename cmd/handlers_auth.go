package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/session"
	"github.com/vibarr/vibarr/settings"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

func (c *credentials) validate() error {
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return fmt.Errorf("username required: %w", errs.ErrInvalid)
	}
	if len(c.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", errs.ErrInvalid)
	}
	return nil
}

func (app *application) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(r, &creds); err != nil {
		httpError(w, err)
		return
	}

	user, err := app.database.GetUserByUsername(strings.TrimSpace(creds.Username))
	if err != nil {
		httpError(w, err)
		return
	}
	if user == nil || !session.CheckPassword(user.PasswordHash, creds.Password) {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	app.issueSession(w, http.StatusOK, user)
}

// handleRegister creates an account when self-registration is open. The
// instance owner bootstraps through /api/auth/setup instead.
func (app *application) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !app.store.Bool(settings.KeyRegistrationEnabled, true) {
		jsonError(w, http.StatusForbidden, "registration is disabled")
		return
	}

	var creds credentials
	if err := decodeJSON(r, &creds); err != nil {
		httpError(w, err)
		return
	}
	if err := creds.validate(); err != nil {
		httpError(w, err)
		return
	}

	if max := app.store.Int(settings.KeyMaxUsers, 0); max > 0 {
		count, err := app.database.CountUsers()
		if err != nil {
			httpError(w, err)
			return
		}
		if count >= max {
			jsonError(w, http.StatusForbidden, "user limit reached")
			return
		}
	}

	app.createAccount(w, creds, false)
}

// handleSetup creates the first admin account. It conflicts as soon as any
// user exists, so it cannot be replayed after bootstrap.
func (app *application) handleSetup(w http.ResponseWriter, r *http.Request) {
	count, err := app.database.CountUsers()
	if err != nil {
		httpError(w, err)
		return
	}
	if count > 0 {
		jsonError(w, http.StatusConflict, "setup already completed")
		return
	}

	var creds credentials
	if err := decodeJSON(r, &creds); err != nil {
		httpError(w, err)
		return
	}
	if err := creds.validate(); err != nil {
		httpError(w, err)
		return
	}
	app.createAccount(w, creds, true)
}

func (app *application) createAccount(w http.ResponseWriter, creds credentials, admin bool) {
	hash, err := session.HashPassword(creds.Password)
	if err != nil {
		httpError(w, err)
		return
	}
	user := &models.User{
		Username:     creds.Username,
		PasswordHash: hash,
		IsAdmin:      admin,
	}
	if email := strings.TrimSpace(creds.Email); email != "" {
		user.Email = &email
	}
	id, err := app.database.CreateUser(user)
	if err != nil {
		httpError(w, err)
		return
	}
	user.ID = id
	app.logger.Info("account created", "user", user.Username, "admin", admin)
	app.issueSession(w, http.StatusCreated, user)
}

func (app *application) issueSession(w http.ResponseWriter, statusCode int, user *models.User) {
	token, expires, err := app.sessions.IssueToken(user.ID)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.TouchUserLogin(user.ID); err != nil {
		app.logger.Warn("login stamp failed", "user", user.ID, "err", err)
	}
	jsonResponse(w, statusCode, map[string]any{
		"token":     token,
		"expiresAt": expires,
		"user":      user,
	})
}

func (app *application) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	count, err := app.database.CountUsers()
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"setupComplete": count > 0,
		"userCount":     count,
	})
}

func (app *application) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// handlePlexPin starts a plex.tv PIN login. The client shows the code, the
// user enters it at plex.tv/link, and the client polls the callback.
func (app *application) handlePlexPin(w http.ResponseWriter, r *http.Request) {
	pin, err := app.clients.Plex().CreatePin(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{
		"pinId": pin.ID,
		"code":  pin.Code,
	})
}

// handlePlexCallback polls a PIN. Once plex.tv reports the link, the token
// is resolved to a plex account and matched against the local users' media
// server usernames; a match logs that user in and refreshes their stored
// token.
func (app *application) handlePlexCallback(w http.ResponseWriter, r *http.Request) {
	pinID, err := strconv.ParseInt(r.URL.Query().Get("pin_id"), 10, 64)
	if err != nil || pinID <= 0 {
		jsonError(w, http.StatusBadRequest, "pin_id is required")
		return
	}

	token, err := app.clients.Plex().CheckPin(r.Context(), pinID)
	if err != nil {
		httpError(w, err)
		return
	}
	if token == "" {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "pending"})
		return
	}

	account, err := app.clients.Plex().Account(r.Context(), token)
	if err != nil {
		httpError(w, err)
		return
	}

	users, err := app.database.ListUsers()
	if err != nil {
		httpError(w, err)
		return
	}
	for _, user := range users {
		if user.MediaServerUsername == nil ||
			!strings.EqualFold(*user.MediaServerUsername, account.Username) {
			continue
		}
		user.MediaServerToken = &token
		if err := app.database.UpdateUser(user); err != nil {
			app.logger.Warn("media server token save failed", "user", user.ID, "err", err)
		}
		app.issueSession(w, http.StatusOK, user)
		return
	}
	jsonError(w, http.StatusForbidden,
		fmt.Sprintf("no account linked to plex user %q", account.Username))
}

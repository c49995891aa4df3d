package main

import (
	"net/http"
	"testing"

	"github.com/vibarr/vibarr/settings"
)

type sessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		IsAdmin  bool   `json:"isAdmin"`
	} `json:"user"`
}

func TestSetupFlow(t *testing.T) {
	_, server := newTestApp(t)

	// Fresh instance reports setup pending.
	resp, body := doRequest(t, http.MethodGet, server.URL+"/api/auth/setup-status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var status struct {
		SetupComplete bool `json:"setupComplete"`
		UserCount     int  `json:"userCount"`
	}
	decodeBody(t, body, &status)
	if status.SetupComplete {
		t.Error("Expected setupComplete false on a fresh instance")
	}

	// First setup creates the admin and logs them in.
	creds := map[string]string{"username": "admin", "password": "password123"}
	resp, body = doRequest(t, http.MethodPost, server.URL+"/api/auth/setup", "", creds)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", resp.StatusCode, body)
	}
	var sess sessionResponse
	decodeBody(t, body, &sess)
	if sess.Token == "" {
		t.Error("Expected a session token from setup")
	}
	if !sess.User.IsAdmin {
		t.Error("Expected the setup user to be an admin")
	}

	// The token works against the protected surface.
	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/auth/me", sess.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 from /api/auth/me, got %d", resp.StatusCode)
	}
	var me struct {
		Username string `json:"username"`
	}
	decodeBody(t, body, &me)
	if me.Username != "admin" {
		t.Errorf("Expected username 'admin', got %q", me.Username)
	}

	// Setup is one-shot.
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/auth/setup", "", creds)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected status 409 for repeated setup, got %d", resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/auth/setup-status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	decodeBody(t, body, &status)
	if !status.SetupComplete || status.UserCount != 1 {
		t.Errorf("Expected setupComplete with one user, got %+v", status)
	}
}

func TestLogin(t *testing.T) {
	app, server := newTestApp(t)
	createTestUser(t, app, "listener", false)

	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/auth/login", "",
		map[string]string{"username": "listener", "password": "password123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, body)
	}
	var sess sessionResponse
	decodeBody(t, body, &sess)
	if sess.Token == "" {
		t.Error("Expected a session token from login")
	}
	if sess.User.Username != "listener" {
		t.Errorf("Expected username 'listener', got %q", sess.User.Username)
	}

	// Username lookup is case-insensitive.
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/auth/login", "",
		map[string]string{"username": "LISTENER", "password": "password123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for case-insensitive login, got %d", resp.StatusCode)
	}

	for name, creds := range map[string]map[string]string{
		"wrong_password": {"username": "listener", "password": "wrong-password"},
		"unknown_user":   {"username": "nobody", "password": "password123"},
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := doRequest(t, http.MethodPost, server.URL+"/api/auth/login", "", creds)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestRegisterGates(t *testing.T) {
	app, server := newTestApp(t)
	createTestUser(t, app, "admin", true)

	// Open registration works.
	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/auth/register", "",
		map[string]string{"username": "second", "password": "password123"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", resp.StatusCode, body)
	}
	var sess sessionResponse
	decodeBody(t, body, &sess)
	if sess.User.IsAdmin {
		t.Error("Expected a registered user not to be an admin")
	}

	// Duplicate usernames conflict.
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/auth/register", "",
		map[string]string{"username": "second", "password": "password123"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected status 409 for a duplicate username, got %d", resp.StatusCode)
	}

	// Short passwords are rejected.
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/auth/register", "",
		map[string]string{"username": "third", "password": "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for a short password, got %d", resp.StatusCode)
	}

	// User cap.
	if err := app.store.SetMany(map[string]string{settings.KeyMaxUsers: "2"}); err != nil {
		t.Fatalf("Failed to set max users: %v", err)
	}
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/auth/register", "",
		map[string]string{"username": "third", "password": "password123"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected status 403 at the user cap, got %d", resp.StatusCode)
	}

	// Registration switched off.
	if err := app.store.SetMany(map[string]string{
		settings.KeyMaxUsers:            "0",
		settings.KeyRegistrationEnabled: "false",
	}); err != nil {
		t.Fatalf("Failed to disable registration: %v", err)
	}
	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/auth/register", "",
		map[string]string{"username": "third", "password": "password123"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected status 403 with registration disabled, got %d", resp.StatusCode)
	}
}

func TestPlexPinValidation(t *testing.T) {
	_, server := newTestApp(t)

	// The callback requires a pin id before anything touches plex.tv.
	resp, _ := doRequest(t, http.MethodGet, server.URL+"/api/auth/plex/callback", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 without pin_id, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, server.URL+"/api/auth/plex/callback?pin_id=abc", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for a malformed pin_id, got %d", resp.StatusCode)
	}
}

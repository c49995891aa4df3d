package main

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vibarr/vibarr/session"
)

// Browsers send an Origin the API cannot predict for self-hosted
// deployments; the token query parameter is the gate.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleDownloadSocket upgrades the connection and registers it with the
// event hub, which pushes download progress frames until the client hangs up.
func (app *application) handleDownloadSocket(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	if token == "" {
		jsonError(w, http.StatusUnauthorized, "token required")
		return
	}
	if _, err := app.sessions.VerifyToken(token); err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	app.hub.Register(conn)
	defer func() {
		app.hub.Unregister(conn)
		conn.Close()
	}()

	// Inbound frames are ignored; reading drains control frames and
	// detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

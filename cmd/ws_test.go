package main

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibarr/vibarr/models"
)

func waitForClients(t *testing.T, app *application, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected %d websocket clients, got %d", want, app.hub.ClientCount())
}

func TestDownloadSocket(t *testing.T) {
	app, server := newTestApp(t)
	_, token := createTestUser(t, app, "watcher", false)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/downloads"

	// No token.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Expected the dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 without a token, got %+v", resp)
	}

	// Garbage token.
	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token=bogus", nil)
	if err == nil {
		t.Fatal("Expected the dial to fail with a bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 with a bad token, got %+v", resp)
	}

	// Valid token upgrades and registers with the hub.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()
	waitForClients(t, app, 1)

	// A published event reaches the client. Without Redis, Publish
	// broadcasts locally.
	event := models.DownloadEvent{
		ID:         "evt-1",
		Type:       models.EventProgress,
		DownloadID: 42,
		Status:     models.DownloadDownloading,
		Progress:   55.5,
		At:         time.Now().UTC(),
	}
	app.hub.PublishEvent(context.Background(), event)

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read the broadcast: %v", err)
	}
	var got models.DownloadEvent
	decodeBody(t, payload, &got)
	if got.Type != models.EventProgress || got.DownloadID != 42 {
		t.Errorf("Expected the published event, got %s", payload)
	}

	// Hanging up unregisters the connection.
	conn.Close()
	waitForClients(t, app, 0)
}

package registry

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/settings"
)

func setupRegistry(t *testing.T) (*Registry, *settings.Store) {
	t.Helper()

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	store, err := settings.New(database, log.New(io.Discard))
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}
	return New(store, log.New(io.Discard)), store
}

func TestFreshInstallAvailability(t *testing.T) {
	reg, _ := setupRegistry(t)

	status := reg.Status()
	// Keyless catalogs work out of the box, everything credentialed does not.
	for name, want := range map[string]bool{
		"musicbrainz": true,
		"deezer":      true,
		"audiodb":     true,
		"spotify":     false,
		"lastfm":      false,
		"plex":        false,
		"prowlarr":    false,
		"qbittorrent": false,
		"sabnzbd":     false,
		"ytmusic":     false,
		"beets":       false,
	} {
		if status[name] != want {
			t.Errorf("%s available = %v, want %v", name, status[name], want)
		}
	}
}

func TestSettingsWriteRebuildsClient(t *testing.T) {
	reg, store := setupRegistry(t)

	before := reg.Prowlarr()
	if before.IsAvailable() {
		t.Fatal("prowlarr should start unconfigured")
	}

	if err := store.SetMany(map[string]string{
		settings.KeyProwlarrURL:    "http://prowlarr:9696",
		settings.KeyProwlarrAPIKey: "key",
	}); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	after := reg.Prowlarr()
	if after == before {
		t.Error("client should have been rebuilt after its settings changed")
	}
	if !after.IsAvailable() {
		t.Error("rebuilt client should be available")
	}
}

func TestUnrelatedWriteLeavesClientsAlone(t *testing.T) {
	reg, store := setupRegistry(t)

	before := reg.Qbittorrent()
	if err := store.Set(settings.KeyMaxConcurrent, "5"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if reg.Qbittorrent() != before {
		t.Error("threshold writes must not churn download clients")
	}
}

func TestDisablingSabnzbdDropsCredentials(t *testing.T) {
	reg, store := setupRegistry(t)

	if err := store.SetMany(map[string]string{
		settings.KeySabEnabled: "true",
		settings.KeySabURL:     "http://sab:8085",
		settings.KeySabAPIKey:  "key",
	}); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if !reg.Sabnzbd().IsAvailable() {
		t.Fatal("sabnzbd should be available once enabled and configured")
	}

	if err := store.Set(settings.KeySabEnabled, "false"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if reg.Sabnzbd().IsAvailable() {
		t.Error("disabling sabnzbd must make it unavailable even with credentials stored")
	}
}

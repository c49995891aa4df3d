package settings

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	store, err := New(database, log.New(io.Discard))
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}
	return store
}

func TestCacheCoherenceAfterWrite(t *testing.T) {
	store := setupStore(t)

	if err := store.Set(KeyProwlarrURL, "http://prowlarr:9696"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if got := store.String(KeyProwlarrURL, ""); got != "http://prowlarr:9696" {
		t.Errorf("read after write = %q, want the new value without a reload", got)
	}

	if err := store.SetMany(map[string]string{
		KeyQbitURL:      "http://qbit:8080",
		KeyQbitUsername: "admin",
	}); err != nil {
		t.Fatalf("Failed to set many: %v", err)
	}
	if got := store.String(KeyQbitURL, ""); got != "http://qbit:8080" {
		t.Errorf("batch read after write = %q", got)
	}
}

func TestDefaultsSeededOnce(t *testing.T) {
	store := setupStore(t)

	if got := store.String(KeyQbitCategory, ""); got != "vibarr" {
		t.Errorf("default qbittorrent category = %q, want vibarr", got)
	}
	if got := store.Float(KeyAutoDownloadThreshold, 0); got != 0.85 {
		t.Errorf("default threshold = %v, want 0.85", got)
	}
	if got := store.Int(KeyMaxConcurrent, 0); got != 3 {
		t.Errorf("default max concurrent = %d, want 3", got)
	}
	if store.Bool(KeyAutoDownloadEnabled, true) {
		t.Error("auto download must default off")
	}
}

func TestBoolRecognizedSpellings(t *testing.T) {
	store := setupStore(t)

	cases := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"Yes", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"on", false},
	}
	for _, tc := range cases {
		if err := store.Set(KeyAutoDownloadEnabled, tc.value); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
		if got := store.Bool(KeyAutoDownloadEnabled, !tc.want); got != tc.want {
			t.Errorf("Bool(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestOptionalTreatsEmptyAsAbsent(t *testing.T) {
	store := setupStore(t)

	if _, ok := store.Optional(KeyPlexToken); ok {
		t.Error("empty default should be absent")
	}
	if err := store.Set(KeyPlexToken, "tok"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	v, ok := store.Optional(KeyPlexToken)
	if !ok || v != "tok" {
		t.Errorf("Optional = (%q, %v), want (tok, true)", v, ok)
	}
}

func TestInvalidateReloadsFromStorage(t *testing.T) {
	store := setupStore(t)

	// Out-of-band write, bypassing the cache.
	if err := store.db.SetSetting(KeyProwlarrAPIKey, "rotated"); err != nil {
		t.Fatalf("Failed direct write: %v", err)
	}
	if got := store.String(KeyProwlarrAPIKey, ""); got == "rotated" {
		t.Fatal("cache should not see the direct write yet")
	}

	store.Invalidate()
	if got := store.String(KeyProwlarrAPIKey, ""); got != "rotated" {
		t.Errorf("after invalidate = %q, want rotated", got)
	}
}

func TestOnChangeFiresWithKeys(t *testing.T) {
	store := setupStore(t)

	var got [][]string
	store.OnChange(func(keys []string) {
		got = append(got, keys)
	})

	if err := store.Set(KeyProwlarrURL, "http://p"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := store.SetMany(map[string]string{KeyQbitURL: "http://q", KeyQbitPassword: "pw"}); err != nil {
		t.Fatalf("Failed to set many: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(got))
	}
	if len(got[0]) != 1 || got[0][0] != KeyProwlarrURL {
		t.Errorf("first event keys = %v", got[0])
	}
	if len(got[1]) != 2 {
		t.Errorf("second event should carry both keys, got %v", got[1])
	}
}

func TestAllMasksSecrets(t *testing.T) {
	store := setupStore(t)

	if err := store.SetMany(map[string]string{
		KeyQbitPassword: "hunter2",
		KeyQbitURL:      "http://qbit:8080",
	}); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	all := store.All()
	if all[KeyQbitPassword] != "********" {
		t.Errorf("password should be masked, got %q", all[KeyQbitPassword])
	}
	if all[KeyQbitURL] != "http://qbit:8080" {
		t.Errorf("non-secret should pass through, got %q", all[KeyQbitURL])
	}
}

package plex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vibarr/vibarr/errs"
)

func container(payload map[string]any) []byte {
	b, _ := json.Marshal(map[string]any{"MediaContainer": payload})
	return b
}

func fakeServer(t *testing.T, withMusic bool) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/library/sections":
			dirs := []map[string]any{{"key": "2", "type": "movie", "title": "Movies"}}
			if withMusic {
				dirs = append(dirs, map[string]any{"key": "5", "type": "artist", "title": "Music"})
			}
			w.Write(container(map[string]any{"Directory": dirs}))
		case "/library/sections/5/all":
			w.Write(container(map[string]any{"Metadata": []map[string]any{
				{"ratingKey": "100", "type": "artist", "title": "The Weeknd",
					"Genre": []map[string]any{{"tag": "r&b"}, {"tag": "pop"}}},
			}}))
		case "/status/sessions/history/all":
			w.Write(container(map[string]any{"Metadata": []map[string]any{
				{"ratingKey": "900", "type": "track", "title": "Sacrifice",
					"parentTitle": "Dawn FM", "grandparentTitle": "The Weeknd",
					"viewedAt": 1700000100, "accountID": 1},
			}}))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "tok", nil)
}

func TestMusicSectionKey(t *testing.T) {
	svc := fakeServer(t, true)
	key, err := svc.MusicSectionKey(context.Background())
	if err != nil {
		t.Fatalf("MusicSectionKey failed: %v", err)
	}
	if key != "5" {
		t.Errorf("key = %q, want 5", key)
	}
}

func TestVerifyTokenDistinguishesFailures(t *testing.T) {
	// Reachable server without a music section: forbidden.
	svc := fakeServer(t, false)
	err := svc.VerifyToken(context.Background())
	if !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("no-music-section error = %v, want ErrForbidden", err)
	}

	// Unreachable server: unavailable.
	dead := New("http://127.0.0.1:1", "tok", nil)
	dead.httpClient.Timeout = 200 * time.Millisecond
	err = dead.VerifyToken(context.Background())
	if !errors.Is(err, errs.ErrUnavailable) {
		t.Errorf("unreachable error = %v, want ErrUnavailable", err)
	}

	// Bad token: forbidden.
	badTok := fakeServer(t, true)
	badTok.token = "wrong"
	err = badTok.VerifyToken(context.Background())
	if !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("bad-token error = %v, want ErrForbidden", err)
	}
}

func TestSectionArtistsFlattensGenres(t *testing.T) {
	svc := fakeServer(t, true)
	artists, err := svc.SectionArtists(context.Background(), "5")
	if err != nil {
		t.Fatalf("SectionArtists failed: %v", err)
	}
	if len(artists) != 1 {
		t.Fatalf("got %d artists, want 1", len(artists))
	}
	tags := artists[0].GenreTags()
	if len(tags) != 2 || tags[0] != "r&b" {
		t.Errorf("genre tags = %v", tags)
	}
}

func TestHistorySincePassesCutoff(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write(container(map[string]any{"Metadata": []map[string]any{}}))
	}))
	defer srv.Close()

	svc := New(srv.URL, "tok", nil)
	since := time.Unix(1700000000, 0)
	if _, err := svc.HistorySince(context.Background(), since); err != nil {
		t.Fatalf("HistorySince failed: %v", err)
	}
	if !strings.Contains(gotQuery, "viewedAt%3E=1700000000") {
		t.Errorf("query = %q, want viewedAt cutoff", gotQuery)
	}
}

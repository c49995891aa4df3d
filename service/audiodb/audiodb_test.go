package audiodb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeAudioDB(t *testing.T, apiKey string) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/" + apiKey + "/search.php":
			if r.URL.Query().Get("s") != "Daft Punk" {
				w.Write([]byte(`{"artists":null}`))
				return
			}
			w.Write([]byte(`{"artists":[{"idArtist":"111239","strArtist":"Daft Punk",
				"strGenre":"Electronic","strStyle":"House","intFormedYear":"1993",
				"strCountry":"Paris, France","strArtistThumb":"https://img/daft.jpg",
				"strMusicBrainzID":"056e4f3e-d505-4dad-8ec1-d04f521cbb56"}]}`))
		case "/" + apiKey + "/artist-mb.php":
			if r.URL.Query().Get("i") != "056e4f3e-d505-4dad-8ec1-d04f521cbb56" {
				w.Write([]byte(`{"artists":null}`))
				return
			}
			w.Write([]byte(`{"artists":[{"idArtist":"111239","strArtist":"Daft Punk","strGenre":"Electronic"}]}`))
		case "/" + apiKey + "/searchalbum.php":
			w.Write([]byte(`{"album":[{"idAlbum":"2110231","idArtist":"111239",
				"strAlbum":"Discovery","strArtist":"Daft Punk","intYearReleased":"2001",
				"strGenre":"Electronic","strAlbumThumb":"https://img/discovery.jpg",
				"strMusicBrainzID":"47ae093f-1607-49a3-be11-a15d335ccc94"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	svc := New(apiKey, nil)
	svc.baseURL = srv.URL
	return svc
}

func TestSearchArtistReturnsFirstRecord(t *testing.T) {
	svc := fakeAudioDB(t, "2")

	artist := svc.SearchArtist(context.Background(), "Daft Punk")
	if artist == nil {
		t.Fatal("expected an artist")
	}
	if artist.Name != "Daft Punk" || artist.Thumb != "https://img/daft.jpg" {
		t.Errorf("artist = %+v", artist)
	}
	if artist.MusicBrainzID != "056e4f3e-d505-4dad-8ec1-d04f521cbb56" {
		t.Errorf("mbid = %q", artist.MusicBrainzID)
	}
}

func TestMissDecodesNullAsNil(t *testing.T) {
	svc := fakeAudioDB(t, "2")

	if artist := svc.SearchArtist(context.Background(), "Nobody At All"); artist != nil {
		t.Errorf("expected nil for a miss, got %+v", artist)
	}
}

func TestArtistByMBIDBridges(t *testing.T) {
	svc := fakeAudioDB(t, "2")

	artist := svc.ArtistByMBID(context.Background(), "056e4f3e-d505-4dad-8ec1-d04f521cbb56")
	if artist == nil {
		t.Fatal("expected an artist for a known mbid")
	}
	if artist.ID != "111239" {
		t.Errorf("id = %q", artist.ID)
	}
	if artist := svc.ArtistByMBID(context.Background(), "no-such-mbid"); artist != nil {
		t.Errorf("expected nil for an unknown mbid, got %+v", artist)
	}
}

func TestSearchAlbumMapsRecord(t *testing.T) {
	svc := fakeAudioDB(t, "2")

	album := svc.SearchAlbum(context.Background(), "Daft Punk", "Discovery")
	if album == nil {
		t.Fatal("expected an album")
	}
	if album.Title != "Discovery" || album.Year != "2001" || album.Thumb != "https://img/discovery.jpg" {
		t.Errorf("album = %+v", album)
	}
}

func TestEmptyKeyFallsBackToFreeTier(t *testing.T) {
	svc := New("", nil)
	if svc.apiKey != FreeTierKey {
		t.Errorf("apiKey = %q, want the free-tier key", svc.apiKey)
	}
	if !svc.IsAvailable() {
		t.Error("client must always be available")
	}
}

func TestGenresDropPlaceholders(t *testing.T) {
	a := &Artist{Genre: "Electronic", Style: "..."}
	got := a.Genres()
	if len(got) != 1 || got[0] != "Electronic" {
		t.Errorf("Genres() = %v", got)
	}
	if got := (&Artist{}).Genres(); got != nil {
		t.Errorf("empty artist should have no genres, got %v", got)
	}
}

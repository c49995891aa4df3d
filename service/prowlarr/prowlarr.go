// Package prowlarr talks to a Prowlarr instance, the indexer aggregator that
// fronts every torrent and usenet tracker. Search results are normalized into
// Release records; SearchAlbum additionally scores each result against the
// wanted artist and album so callers can pick the best grab candidate.
package prowlarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/pkg/relevance"
)

// DefaultCategories are the Newznab audio categories: 3000 Audio, 3010
// Audio/MP3, 3040 Audio/Lossless.
var DefaultCategories = []int{3000, 3010, 3040}

// Release is one normalized indexer result.
type Release struct {
	Guid        string    `json:"guid"`
	IndexerID   int       `json:"indexerId"`
	Indexer     string    `json:"indexer"`
	Title       string    `json:"title"`
	Size        int64     `json:"size"`
	Seeders     int       `json:"seeders"`
	Leechers    int       `json:"leechers"`
	Protocol    string    `json:"protocol"` // torrent or usenet
	DownloadURL string    `json:"downloadUrl"`
	InfoURL     string    `json:"infoUrl,omitempty"`
	PublishDate time.Time `json:"publishDate,omitempty"`
	Categories  []int     `json:"categories,omitempty"`

	// Populated by SearchAlbum.
	Quality             string  `json:"quality,omitempty"`
	Score               float64 `json:"score"`
	PassesTextRelevance bool    `json:"passesTextRelevance"`
}

// GrabResult reports the outcome of asking Prowlarr to forward a release to
// the configured download client.
type GrabResult struct {
	Success    bool   `json:"success"`
	DownloadID string `json:"downloadId,omitempty"`
}

type searchResult struct {
	Guid        string `json:"guid"`
	IndexerID   int    `json:"indexerId"`
	Indexer     string `json:"indexer"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	Seeders     *int   `json:"seeders"`
	Leechers    *int   `json:"leechers"`
	Protocol    string `json:"protocol"`
	DownloadURL string `json:"downloadUrl"`
	InfoURL     string `json:"infoUrl"`
	PublishDate string `json:"publishDate"`
	Categories  []struct {
		ID int `json:"id"`
	} `json:"categories"`
}

type Service struct {
	baseURL    string
	apiKey     string
	minMatch   float64
	httpClient *http.Client
	logger     *log.Logger
}

// New builds a Prowlarr client. minMatch is the text-relevance gate threshold
// for SearchAlbum; zero falls back to the built-in 0.6.
func New(baseURL, apiKey string, minMatch float64, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "prowlarr", ReportTimestamp: true})
	}
	return &Service{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		minMatch:   minMatch,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// IsAvailable reports whether a URL and API key were configured.
func (s *Service) IsAvailable() bool { return s.baseURL != "" && s.apiKey != "" }

func (s *Service) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if !s.IsAvailable() {
		return fmt.Errorf("prowlarr: %w", errs.ErrConfigMissing)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prowlarr %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("prowlarr %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Search runs a raw indexer query across the given categories, defaulting to
// the audio set.
func (s *Service) Search(ctx context.Context, query string, categories []int) ([]Release, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "search")
	for _, c := range categories {
		params.Add("categories", strconv.Itoa(c))
	}

	var raw []searchResult
	if err := s.do(ctx, http.MethodGet, "/api/v1/search?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Release, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalizeResult(r))
	}
	return out, nil
}

// SearchAlbum searches for an album and scores every result against the
// wanted artist/album/format, returned best first with gate-passing results
// ahead of the rest.
func (s *Service) SearchAlbum(ctx context.Context, artist, album, preferredFormat string) ([]Release, error) {
	query := strings.TrimSpace(artist + " " + album)
	releases, err := s.Search(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	scores := make([]relevance.Score, len(releases))
	for i, r := range releases {
		scores[i] = relevance.ScoreRelease(artist, album, preferredFormat, r.Title, r.Seeders, r.Size, s.minMatch)
		releases[i].Quality = scores[i].Quality
		releases[i].Score = scores[i].Total
		releases[i].PassesTextRelevance = scores[i].PassesTextRelevance
	}

	ranked := make([]Release, 0, len(releases))
	for _, i := range relevance.Ranked(scores) {
		ranked = append(ranked, releases[i])
	}
	s.logger.Debug("album search scored", "artist", artist, "album", album, "results", len(ranked))
	return ranked, nil
}

// Grab asks Prowlarr to push a release to its configured download client. A
// non-2xx response is returned as an unsuccessful result rather than an
// error so callers can fall back to a direct add.
func (s *Service) Grab(ctx context.Context, guid string, indexerID int) (GrabResult, error) {
	payload, err := json.Marshal(map[string]any{
		"guid":      guid,
		"indexerId": indexerID,
	})
	if err != nil {
		return GrabResult{}, fmt.Errorf("encode grab: %w", err)
	}

	var resp struct {
		DownloadClientID string `json:"downloadClientId"`
		DownloadID       string `json:"downloadId"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/v1/search", bytes.NewReader(payload), &resp); err != nil {
		s.logger.Warn("grab rejected", "guid", guid, "indexer", indexerID, "err", err)
		return GrabResult{Success: false}, nil
	}
	id := resp.DownloadID
	if id == "" {
		id = resp.DownloadClientID
	}
	return GrabResult{Success: true, DownloadID: id}, nil
}

// Ping verifies connectivity and the API key.
func (s *Service) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

func normalizeResult(r searchResult) Release {
	rel := Release{
		Guid:        r.Guid,
		IndexerID:   r.IndexerID,
		Indexer:     r.Indexer,
		Title:       r.Title,
		Size:        r.Size,
		Protocol:    strings.ToLower(r.Protocol),
		DownloadURL: r.DownloadURL,
		InfoURL:     r.InfoURL,
	}
	if r.Seeders != nil {
		rel.Seeders = *r.Seeders
	}
	if r.Leechers != nil {
		rel.Leechers = *r.Leechers
	}
	if r.PublishDate != "" {
		if t, err := time.Parse(time.RFC3339, r.PublishDate); err == nil {
			rel.PublishDate = t
		}
	}
	for _, c := range r.Categories {
		rel.Categories = append(rel.Categories, c.ID)
	}
	return rel
}

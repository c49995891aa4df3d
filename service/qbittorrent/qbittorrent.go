// Package qbittorrent drives the qBittorrent WebUI API. Sessions are cookie
// based: Login stores the SID in a jar and any 403 triggers exactly one
// re-login retry before the call fails. Torrent identity is bridged from
// release titles to info hashes by FindTorrentHash, which polls the torrent
// list and compares normalized names.
package qbittorrent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/pkg/relevance"
)

// Torrent is one entry of the WebUI torrent list.
type Torrent struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"` // 0..1
	DLSpeed     int64   `json:"dlspeed"`  // bytes/s
	ETA         int64   `json:"eta"`      // seconds, 8640000 = none
	Size        int64   `json:"size"`
	SavePath    string  `json:"save_path"`
	ContentPath string  `json:"content_path"`
	Category    string  `json:"category"`
	AddedOn     int64   `json:"added_on"`
}

// Complete reports whether the torrent finished downloading.
func (t Torrent) Complete() bool {
	if t.Progress >= 1 {
		return true
	}
	switch t.State {
	case "uploading", "stalledUP", "pausedUP", "queuedUP", "checkingUP", "forcedUP":
		return true
	}
	return false
}

// Errored reports a client-side failure state.
func (t Torrent) Errored() bool {
	return t.State == "error" || t.State == "missingFiles"
}

// Path prefers content_path, the actual payload location, over save_path.
func (t Torrent) Path() string {
	if t.ContentPath != "" {
		return t.ContentPath
	}
	return t.SavePath
}

type Service struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	loggedIn bool
}

// New builds a qBittorrent client with its own cookie jar.
func New(baseURL, username, password string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "qbittorrent", ReportTimestamp: true})
	}
	jar, _ := cookiejar.New(nil)
	return &Service{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		logger: logger,
	}
}

// IsAvailable reports whether a WebUI URL was configured.
func (s *Service) IsAvailable() bool { return s.baseURL != "" }

// Login authenticates against the WebUI. qBittorrent answers 200 with a
// literal "Ok." body on success and "Fails." on bad credentials.
func (s *Service) Login(ctx context.Context) error {
	if !s.IsAvailable() {
		return fmt.Errorf("qbittorrent: %w", errs.ErrConfigMissing)
	}
	data := url.Values{}
	data.Set("username", s.username)
	data.Set("password", s.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v2/auth/login",
		strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qbittorrent login: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	result := strings.ToLower(strings.TrimSpace(string(body)))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qbittorrent login: status %d: %s", resp.StatusCode, result)
	}
	if result != "ok." {
		return fmt.Errorf("qbittorrent login: invalid credentials")
	}

	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()
	return nil
}

func (s *Service) ensureLogin(ctx context.Context) error {
	s.mu.Lock()
	ok := s.loggedIn
	s.mu.Unlock()
	if ok {
		return nil
	}
	return s.Login(ctx)
}

// request performs an authenticated call, re-logging in once on 403. make
// must produce a fresh request each attempt because bodies are single-use.
func (s *Service) request(ctx context.Context, make func() (*http.Request, error)) ([]byte, error) {
	if err := s.ensureLogin(ctx); err != nil {
		return nil, err
	}

	attempt := func() (*http.Response, error) {
		req, err := make()
		if err != nil {
			return nil, err
		}
		return s.httpClient.Do(req)
	}

	resp, err := attempt()
	if err != nil {
		return nil, fmt.Errorf("qbittorrent request: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		s.mu.Lock()
		s.loggedIn = false
		s.mu.Unlock()
		if err := s.Login(ctx); err != nil {
			return nil, fmt.Errorf("re-login: %w", err)
		}
		resp, err = attempt()
		if err != nil {
			return nil, fmt.Errorf("qbittorrent retry: %w", err)
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("qbittorrent: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (s *Service) postForm(ctx context.Context, endpoint string, data url.Values) ([]byte, error) {
	return s.request(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint,
			strings.NewReader(data.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (s *Service) get(ctx context.Context, endpoint string, out any) error {
	body, err := s.request(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// AddTorrentURL submits a torrent by URL or magnet link into the category,
// saving under savePath when given. The WebUI expects multipart form data.
func (s *Service) AddTorrentURL(ctx context.Context, torrentURL, category, savePath string) error {
	buildBody := func() (*strings.Reader, string, error) {
		var b strings.Builder
		w := multipart.NewWriter(&b)
		if err := w.WriteField("urls", torrentURL); err != nil {
			return nil, "", err
		}
		if category != "" {
			if err := w.WriteField("category", category); err != nil {
				return nil, "", err
			}
		}
		if savePath != "" {
			if err := w.WriteField("savepath", savePath); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return strings.NewReader(b.String()), w.FormDataContentType(), nil
	}

	body, err := s.request(ctx, func() (*http.Request, error) {
		r, contentType, err := buildBody()
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v2/torrents/add", r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(string(body)), "fails.") {
		return fmt.Errorf("qbittorrent rejected torrent url")
	}
	return nil
}

// Torrents lists torrents, optionally narrowed by state filter and category.
func (s *Service) Torrents(ctx context.Context, filter, category string) ([]Torrent, error) {
	params := url.Values{}
	if filter != "" {
		params.Set("filter", filter)
	}
	if category != "" {
		params.Set("category", category)
	}
	endpoint := "/api/v2/torrents/info"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var torrents []Torrent
	if err := s.get(ctx, endpoint, &torrents); err != nil {
		return nil, err
	}
	return torrents, nil
}

// Torrent fetches one torrent by hash; nil when the client no longer has it.
func (s *Service) Torrent(ctx context.Context, hash string) (*Torrent, error) {
	var torrents []Torrent
	if err := s.get(ctx, "/api/v2/torrents/info?hashes="+url.QueryEscape(strings.ToLower(hash)), &torrents); err != nil {
		return nil, err
	}
	if len(torrents) == 0 {
		return nil, nil
	}
	return &torrents[0], nil
}

// FindTorrentHash polls the torrent list until one's normalized name matches
// the release title, checking newest first. Window and interval bound the
// poll; a zero interval defaults to 500ms.
func (s *Service) FindTorrentHash(ctx context.Context, releaseTitle, category string, window, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := time.Now().Add(window)
	for {
		torrents, err := s.Torrents(ctx, "", category)
		if err != nil {
			return "", err
		}
		// Newest first so a fresh add wins over an old same-named torrent.
		best := ""
		bestAdded := int64(-1)
		for _, t := range torrents {
			if relevance.TitlesMatch(releaseTitle, t.Name) && t.AddedOn > bestAdded {
				best, bestAdded = t.Hash, t.AddedOn
			}
		}
		if best != "" {
			return best, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no torrent matching %q: %w", releaseTitle, errs.ErrNotFound)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Pause pauses one torrent.
func (s *Service) Pause(ctx context.Context, hash string) error {
	_, err := s.postForm(ctx, "/api/v2/torrents/pause", url.Values{"hashes": {strings.ToLower(hash)}})
	return err
}

// Resume resumes one torrent.
func (s *Service) Resume(ctx context.Context, hash string) error {
	_, err := s.postForm(ctx, "/api/v2/torrents/resume", url.Values{"hashes": {strings.ToLower(hash)}})
	return err
}

// Delete removes a torrent, optionally with its files.
func (s *Service) Delete(ctx context.Context, hash string, deleteFiles bool) error {
	data := url.Values{"hashes": {strings.ToLower(hash)}, "deleteFiles": {"false"}}
	if deleteFiles {
		data.Set("deleteFiles", "true")
	}
	_, err := s.postForm(ctx, "/api/v2/torrents/delete", data)
	return err
}

// EnsureCategory creates the category if needed. qBittorrent answers 409
// when it already exists, which counts as success.
func (s *Service) EnsureCategory(ctx context.Context, category, savePath string) error {
	data := url.Values{"category": {category}}
	if savePath != "" {
		data.Set("savePath", savePath)
	}
	_, err := s.postForm(ctx, "/api/v2/torrents/createCategory", data)
	if err != nil && strings.Contains(err.Error(), "status 409") {
		return nil
	}
	return err
}

// Version returns the application version, doubling as a connectivity check.
func (s *Service) Version(ctx context.Context) (string, error) {
	body, err := s.request(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v2/app/version", nil)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Package sabnzbd wraps the SABnzbd JSON API for usenet downloads. Every
// call goes through /api with mode, apikey and output=json query parameters;
// queue slots are identified by their nzo id.
package sabnzbd

import (
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
)

// QueueSlot is one active or queued usenet download.
type QueueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"` // Downloading, Queued, Paused, ...
	Percentage string `json:"percentage"`
	MB         string `json:"mb"`
	MBLeft     string `json:"mbleft"`
	TimeLeft   string `json:"timeleft"` // H:MM:SS
	Category   string `json:"cat"`
}

// Progress converts the percentage string to a 0..100 float.
func (q QueueSlot) Progress() float64 {
	v, err := strconv.ParseFloat(q.Percentage, 64)
	if err != nil {
		return 0
	}
	return v
}

// ETASeconds parses the H:MM:SS time-left field; zero when unknown.
func (q QueueSlot) ETASeconds() int64 {
	parts := strings.Split(q.TimeLeft, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return int64(h*3600 + m*60 + s)
}

// HistorySlot is one finished entry of the SABnzbd history.
type HistorySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Status      string `json:"status"` // Completed, Failed
	Storage     string `json:"storage"`
	Path        string `json:"path"`
	FailMessage string `json:"fail_message"`
	Category    string `json:"category"`
}

// Completed reports a finished, successful download.
func (h HistorySlot) Completed() bool { return strings.EqualFold(h.Status, "Completed") }

// Failed reports a failed download.
func (h HistorySlot) Failed() bool { return strings.EqualFold(h.Status, "Failed") }

// FinalPath prefers the storage location over the raw path.
func (h HistorySlot) FinalPath() string {
	if h.Storage != "" {
		return h.Storage
	}
	return h.Path
}

type Service struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

// New builds a SABnzbd client.
func New(baseURL, apiKey string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "sabnzbd", ReportTimestamp: true})
	}
	return &Service{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// IsAvailable reports whether a URL and API key were configured.
func (s *Service) IsAvailable() bool { return s.baseURL != "" && s.apiKey != "" }

func (s *Service) call(ctx context.Context, mode string, params url.Values, out any) error {
	if !s.IsAvailable() {
		return fmt.Errorf("sabnzbd: %w", errs.ErrConfigMissing)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("mode", mode)
	params.Set("apikey", s.apiKey)
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sabnzbd %s: %w", mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sabnzbd %s: status %d: %s", mode, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AddNZBURL submits an NZB by URL into the category and returns its nzo id.
func (s *Service) AddNZBURL(ctx context.Context, nzbURL, name, category string) (string, error) {
	params := url.Values{}
	params.Set("name", nzbURL)
	if name != "" {
		params.Set("nzbname", name)
	}
	if category != "" {
		params.Set("cat", category)
	}

	var resp struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
		Error  string   `json:"error"`
	}
	if err := s.call(ctx, "addurl", params, &resp); err != nil {
		return "", err
	}
	if !resp.Status || len(resp.NzoIDs) == 0 {
		if resp.Error != "" {
			return "", fmt.Errorf("sabnzbd addurl: %s", resp.Error)
		}
		return "", fmt.Errorf("sabnzbd addurl returned no nzo id")
	}
	return resp.NzoIDs[0], nil
}

// Queue returns the active queue slots.
func (s *Service) Queue(ctx context.Context) ([]QueueSlot, error) {
	var resp struct {
		Queue struct {
			Slots []QueueSlot `json:"slots"`
		} `json:"queue"`
	}
	if err := s.call(ctx, "queue", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Queue.Slots, nil
}

// QueueSlot fetches one queue entry by nzo id; nil when not queued anymore.
func (s *Service) QueueSlot(ctx context.Context, nzoID string) (*QueueSlot, error) {
	slots, err := s.Queue(ctx)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].NzoID == nzoID {
			return &slots[i], nil
		}
	}
	return nil, nil
}

// History returns the most recent finished entries.
func (s *Service) History(ctx context.Context, limit int) ([]HistorySlot, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		History struct {
			Slots []HistorySlot `json:"slots"`
		} `json:"history"`
	}
	if err := s.call(ctx, "history", params, &resp); err != nil {
		return nil, err
	}
	return resp.History.Slots, nil
}

// HistorySlot fetches one finished entry by nzo id; nil when absent.
func (s *Service) HistorySlot(ctx context.Context, nzoID string) (*HistorySlot, error) {
	slots, err := s.History(ctx, 100)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].NzoID == nzoID {
			return &slots[i], nil
		}
	}
	return nil, nil
}

// Pause pauses one queue entry.
func (s *Service) Pause(ctx context.Context, nzoID string) error {
	params := url.Values{"name": {"pause"}, "value": {nzoID}}
	return s.call(ctx, "queue", params, nil)
}

// Resume resumes one queue entry.
func (s *Service) Resume(ctx context.Context, nzoID string) error {
	params := url.Values{"name": {"resume"}, "value": {nzoID}}
	return s.call(ctx, "queue", params, nil)
}

// Delete removes a queue entry, optionally deleting its files.
func (s *Service) Delete(ctx context.Context, nzoID string, delFiles bool) error {
	params := url.Values{"name": {"delete"}, "value": {nzoID}}
	if delFiles {
		params.Set("del_files", "1")
	}
	return s.call(ctx, "queue", params, nil)
}

// DeleteHistory removes a history entry, optionally deleting its files. Used
// after a successful import so SAB storage does not accumulate.
func (s *Service) DeleteHistory(ctx context.Context, nzoID string, delFiles bool) error {
	params := url.Values{"name": {"delete"}, "value": {nzoID}}
	if delFiles {
		params.Set("del_files", "1")
	}
	return s.call(ctx, "history", params, nil)
}

// Version returns the SABnzbd version, doubling as a connectivity check.
func (s *Service) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := s.call(ctx, "version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

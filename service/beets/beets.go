// Package beets shells out to the beets music tagger for post-download
// library imports. beets owns the final library layout; this wrapper runs a
// non-interactive import, bounds it with a hard timeout, and scrapes the
// destination path and item counts out of the output.
package beets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ImportTimeout caps a single import run. Large FLAC sets with fingerprint
// lookups can take minutes; anything past this is wedged.
const ImportTimeout = 10 * time.Minute

// ImportResult is the structured outcome of one import run.
type ImportResult struct {
	Success        bool   `json:"success"`
	FinalPath      string `json:"finalPath,omitempty"`
	AlbumsImported int    `json:"albumsImported"`
	TracksImported int    `json:"tracksImported"`
	Err            string `json:"error,omitempty"`
}

type Service struct {
	executable  string
	configPath  string
	libraryPath string
	enabled     bool
	logger      *log.Logger

	// Overridable in tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New builds a beets wrapper. An empty executable defaults to "beet" on PATH.
func New(enabled bool, executable, configPath, libraryPath string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "beets", ReportTimestamp: true})
	}
	if executable == "" {
		executable = "beet"
	}
	s := &Service{
		executable:  executable,
		configPath:  configPath,
		libraryPath: libraryPath,
		enabled:     enabled,
		logger:      logger,
	}
	s.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		err := cmd.Run()
		return buf.Bytes(), err
	}
	return s
}

// IsAvailable reports whether imports are enabled and the binary resolves.
func (s *Service) IsAvailable() bool {
	if !s.enabled {
		return false
	}
	if filepath.IsAbs(s.executable) {
		_, err := os.Stat(s.executable)
		return err == nil
	}
	_, err := exec.LookPath(s.executable)
	return err == nil
}

func (s *Service) baseArgs() []string {
	if s.configPath != "" {
		return []string{"-c", s.configPath}
	}
	return nil
}

var (
	// "/music/The Weeknd/Dawn FM (16 items)" and the tagging banner both
	// reveal where beets put the album.
	itemsLine   = regexp.MustCompile(`^(.+?) \((\d+) items?\)`)
	taggingLine = regexp.MustCompile(`(?i)^Tagging:?\s+(.+)$`)
)

// ImportDirectory imports one downloaded directory into the beets library.
// Hints help beets disambiguate in quiet mode; move controls -m (move) vs
// -c (copy). The run is killed after ImportTimeout.
func (s *Service) ImportDirectory(ctx context.Context, path, artistHint, albumHint string, move bool) ImportResult {
	if !s.IsAvailable() {
		return ImportResult{Err: "beets is not available"}
	}
	if path == "" {
		return ImportResult{Err: "no path to import"}
	}

	args := append(s.baseArgs(), "import", "-q")
	if move {
		args = append(args, "-m")
	} else {
		args = append(args, "-c")
	}
	if artistHint != "" || albumHint != "" {
		args = append(args, "--set", fmt.Sprintf("comments=%s", strings.TrimSpace(artistHint+" "+albumHint)))
	}
	args = append(args, path)

	ctx, cancel := context.WithTimeout(ctx, ImportTimeout)
	defer cancel()

	s.logger.Info("running import", "path", path, "move", move)
	out, err := s.runCommand(ctx, s.executable, args...)
	output := string(out)

	if ctx.Err() == context.DeadlineExceeded {
		return ImportResult{Err: "import timed out", FinalPath: ""}
	}
	if err != nil {
		msg := strings.TrimSpace(output)
		if msg == "" {
			msg = err.Error()
		}
		s.logger.Error("import failed", "path", path, "err", msg)
		return ImportResult{Err: msg}
	}

	res := parseImportOutput(output)
	res.Success = true
	if res.FinalPath == "" && s.libraryPath != "" {
		// beets can be silent in quiet mode; fall back to the library root
		// joined with hints so the caller records something navigable.
		if artistHint != "" {
			res.FinalPath = filepath.Join(s.libraryPath, artistHint, albumHint)
		} else {
			res.FinalPath = s.libraryPath
		}
	}
	return res
}

// parseImportOutput extracts the destination and counts from beets output.
func parseImportOutput(output string) ImportResult {
	var res ImportResult
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := itemsLine.FindStringSubmatch(line); m != nil {
			res.AlbumsImported++
			if n, err := strconv.Atoi(m[2]); err == nil {
				res.TracksImported += n
			}
			if res.FinalPath == "" {
				res.FinalPath = strings.TrimSpace(m[1])
			}
			continue
		}
		if m := taggingLine.FindStringSubmatch(line); m != nil && res.FinalPath == "" {
			res.FinalPath = strings.TrimSpace(m[1])
		}
	}
	if res.AlbumsImported == 0 && res.TracksImported > 0 {
		res.AlbumsImported = 1
	}
	return res
}

// ListLibrary runs a beets query against the library, returning raw result
// lines. An empty query lists everything up to limit.
func (s *Service) ListLibrary(ctx context.Context, query string, limit int) ([]string, error) {
	if !s.IsAvailable() {
		return nil, fmt.Errorf("beets is not available")
	}
	if limit <= 0 {
		limit = 100
	}
	args := append(s.baseArgs(), "ls")
	if query != "" {
		args = append(args, strings.Fields(query)...)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	out, err := s.runCommand(ctx, s.executable, args...)
	if err != nil {
		return nil, fmt.Errorf("beet ls: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= limit {
			break
		}
	}
	return lines, nil
}

package beets

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubService returns a Service whose runs are served from canned output.
func stubService(t *testing.T, output string, runErr error) (*Service, *[][]string) {
	t.Helper()
	svc := New(true, "beet", "", "/music", nil)
	var calls [][]string
	svc.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return []byte(output), runErr
	}
	// Bypass the PATH lookup; the stub never executes anything.
	svc.executable = "beet"
	svc.enabled = true
	return svc, &calls
}

// available forces IsAvailable to succeed for stubbed services by pointing
// the executable at a file that exists.
func available(svc *Service) {
	svc.executable = "/bin/sh"
}

func TestImportDirectoryParsesCountsAndPath(t *testing.T) {
	svc, calls := stubService(t, "/music/The Weeknd/Dawn FM (10 items)\n", nil)
	available(svc)

	res := svc.ImportDirectory(context.Background(), "/downloads/Dawn FM", "The Weeknd", "Dawn FM", true)
	if !res.Success {
		t.Fatalf("import failed: %s", res.Err)
	}
	if res.FinalPath != "/music/The Weeknd/Dawn FM" {
		t.Errorf("final path = %q", res.FinalPath)
	}
	if res.AlbumsImported != 1 || res.TracksImported != 10 {
		t.Errorf("counts = (%d, %d), want (1, 10)", res.AlbumsImported, res.TracksImported)
	}

	args := (*calls)[0]
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "import -q -m") {
		t.Errorf("move import should pass -m: %s", joined)
	}
	if !strings.HasSuffix(joined, "/downloads/Dawn FM") {
		t.Errorf("path must be the final argument: %s", joined)
	}
}

func TestImportDirectoryCopyMode(t *testing.T) {
	svc, calls := stubService(t, "", nil)
	available(svc)

	svc.ImportDirectory(context.Background(), "/downloads/x", "", "", false)
	joined := strings.Join((*calls)[0], " ")
	if !strings.Contains(joined, "import -q -c") {
		t.Errorf("copy import should pass -c: %s", joined)
	}
}

func TestImportDirectoryFailureCarriesOutput(t *testing.T) {
	svc, _ := stubService(t, "error: no such directory", errors.New("exit status 1"))
	available(svc)

	res := svc.ImportDirectory(context.Background(), "/downloads/missing", "", "", true)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Err, "no such directory") {
		t.Errorf("error should carry beets output, got %q", res.Err)
	}
}

func TestImportFallsBackToLibraryPath(t *testing.T) {
	svc, _ := stubService(t, "", nil)
	available(svc)

	res := svc.ImportDirectory(context.Background(), "/downloads/Dawn FM", "The Weeknd", "Dawn FM", true)
	if !res.Success {
		t.Fatalf("import failed: %s", res.Err)
	}
	if res.FinalPath != "/music/The Weeknd/Dawn FM" {
		t.Errorf("fallback path = %q, want library root + hints", res.FinalPath)
	}
}

func TestDisabledServiceUnavailable(t *testing.T) {
	svc := New(false, "/bin/sh", "", "", nil)
	if svc.IsAvailable() {
		t.Error("disabled service must be unavailable")
	}
	res := svc.ImportDirectory(context.Background(), "/x", "", "", true)
	if res.Success {
		t.Error("import through a disabled service must fail")
	}
}

func TestParseImportOutputMultipleAlbums(t *testing.T) {
	out := `
/music/A/One (8 items)
/music/A/Two (12 items)
`
	res := parseImportOutput(out)
	if res.AlbumsImported != 2 || res.TracksImported != 20 {
		t.Errorf("counts = (%d, %d), want (2, 20)", res.AlbumsImported, res.TracksImported)
	}
	if res.FinalPath != "/music/A/One" {
		t.Errorf("final path = %q, want the first album", res.FinalPath)
	}
}

func TestListLibraryLimitsLines(t *testing.T) {
	svc, _ := stubService(t, "a - 1\nb - 2\nc - 3\n", nil)
	available(svc)

	lines, err := svc.ListLibrary(context.Background(), "artist:a", 2)
	if err != nil {
		t.Fatalf("ListLibrary failed: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}

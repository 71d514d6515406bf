// Package youtube fetches video transcripts with yt-dlp and searches videos
// through the YouTube Data API.
package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// TranscriptFetcher downloads subtitles only, never the video.
type TranscriptFetcher struct {
	binary string
	proxy  string
	run    CommandRunner
	cache  *cache.Cache
	logger *slog.Logger
}

// TranscriptConfig configures a TranscriptFetcher.
type TranscriptConfig struct {
	Binary   string
	ProxyURL string
	CacheTTL time.Duration
}

// NewTranscriptFetcher creates a fetcher. Binary defaults to "yt-dlp".
func NewTranscriptFetcher(cfg TranscriptConfig, logger *slog.Logger) *TranscriptFetcher {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptFetcher{
		binary: cfg.Binary,
		proxy:  cfg.ProxyURL,
		run:    execRunner,
		cache:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: logger,
	}
}

// WithRunner replaces the command runner. Intended for tests.
func (f *TranscriptFetcher) WithRunner(run CommandRunner) *TranscriptFetcher {
	f.run = run
	return f
}

// Fetch returns the transcript text for videoURL. Failures come back as
// text starting with "Skipped:" or "Error" so callers can itemize them.
func (f *TranscriptFetcher) Fetch(ctx context.Context, videoURL string) string {
	if v, ok := f.cache.Get(videoURL); ok {
		return v.(string)
	}

	dir, err := os.MkdirTemp("", "trip-subs-*")
	if err != nil {
		return fmt.Sprintf("Error retrieving transcript: %v", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			f.logger.Warn("Failed to remove subtitle temp dir", "dir", dir, "error", rmErr)
		}
	}()

	args := []string{
		"--skip-download",
		"--write-auto-subs",
		"--write-subs",
		"--sub-langs", "en,en-orig,.*",
		"--sub-format", "vtt",
		"--quiet",
		"--no-warnings",
		"--paths", "home:" + dir,
		"-o", "subs",
	}
	if f.proxy != "" {
		args = append(args, "--proxy", f.proxy)
		f.logger.Debug("Using proxy for transcript fetch", "url", videoURL)
	}
	args = append(args, videoURL)

	f.logger.Debug("Fetching subtitles", "url", videoURL)
	out, err := f.run(ctx, f.binary, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "Error retrieving transcript: " + msg
	}

	files, _ := filepath.Glob(filepath.Join(dir, "subs*.vtt"))
	if len(files) == 0 {
		return "Skipped: No subtitles found for " + videoURL
	}
	sort.Strings(files)

	fh, err := os.Open(files[0])
	if err != nil {
		return fmt.Sprintf("Error parsing subtitle file: %v", err)
	}
	defer fh.Close()

	text, err := ParseVTT(fh)
	if err != nil {
		return fmt.Sprintf("Error parsing subtitle file: %v", err)
	}

	f.cache.Set(videoURL, text, cache.DefaultExpiration)
	return text
}

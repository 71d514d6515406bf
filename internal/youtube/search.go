package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const defaultAPIBase = "https://www.googleapis.com/youtube/v3"

// ErrNoAPIKey is returned when search is attempted without credentials.
var ErrNoAPIKey = errors.New("youtube api key not configured")

// Video is one search result.
type Video struct {
	ID       string
	Title    string
	URL      string
	Duration string
}

// Searcher queries the YouTube Data API v3.
type Searcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewSearcher creates a searcher. An empty baseURL uses the public API.
func NewSearcher(apiKey, baseURL string, cacheTTL time.Duration, logger *slog.Logger) *Searcher {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   cache.New(cacheTTL, 2*cacheTTL),
		logger:  logger,
	}
}

// Search returns up to maxResults videos for query.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]Video, error) {
	if s.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	cacheKey := strconv.Itoa(maxResults) + "|" + query
	if v, ok := s.cache.Get(cacheKey); ok {
		return append([]Video(nil), v.([]Video)...), nil
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("safeSearch", "moderate")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("q", query)
	body, err := s.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var videos []Video
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id.videoId").String()
		if id == "" {
			return true
		}
		videos = append(videos, Video{
			ID:       id,
			Title:    item.Get("snippet.title").String(),
			URL:      "https://www.youtube.com/watch?v=" + id,
			Duration: "N/A",
		})
		return true
	})

	if len(videos) > 0 {
		s.fillDurations(ctx, videos)
	}

	s.cache.Set(cacheKey, append([]Video(nil), videos...), cache.DefaultExpiration)
	return videos, nil
}

func (s *Searcher) fillDurations(ctx context.Context, videos []Video) {
	ids := lo.Map(videos, func(v Video, _ int) string { return v.ID })

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", strings.Join(ids, ","))
	body, err := s.get(ctx, "/videos", params)
	if err != nil {
		s.logger.Warn("Failed to fetch video durations", "error", err)
		return
	}

	durations := map[string]string{}
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		durations[item.Get("id").String()] = FormatISODuration(item.Get("contentDetails.duration").String())
		return true
	})
	for i := range videos {
		if d, ok := durations[videos[i].ID]; ok && d != "" {
			videos[i].Duration = d
		}
	}
}

func (s *Searcher) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("key", s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read youtube response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("youtube api %s: %d %s", path, resp.StatusCode, msg)
	}
	return body, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// FormatISODuration turns an ISO 8601 duration such as PT1H2M3S into
// 1:02:03. Unparseable input yields "".
func FormatISODuration(d string) string {
	m := isoDuration.FindStringSubmatch(d)
	if m == nil || d == "P" || d == "PT" {
		return ""
	}
	n := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	hours := n(m[1])*24 + n(m[2])
	mins, secs := n(m[3]), n(m[4])
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

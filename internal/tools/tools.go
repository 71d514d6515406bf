// Package tools implements the pipeline steps the planner invokes. Every
// tool reads and writes the live session state and reports back with a
// plain-text status; tools never fail the turn.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/trip-planner/internal/itinerary"
	"github.com/ashureev/trip-planner/internal/llm"
	"github.com/ashureev/trip-planner/internal/metrics"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/ashureev/trip-planner/internal/youtube"
)

// Tool names, used for metrics and logs.
const (
	ToolMemorize        = "memorize"
	ToolMemorizeToList  = "memorize_to_list"
	ToolSearchVideos    = "search_videos"
	ToolTranscribe      = "transcribe_videos"
	ToolCompact         = "compact_travel_ideas"
	ToolDraftItinerary  = "draft_itinerary"
	ToolSaveItinerary   = "save_itinerary"
	defaultSearchResult = 5
)

// TranscriptSource fetches the transcript of one video. Failures are
// reported in the returned text.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoURL string) string
}

// VideoSearcher finds candidate videos.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]youtube.Video, error)
}

// Toolbox bundles the collaborators the tools need.
type Toolbox struct {
	transcripts TranscriptSource
	search      VideoSearcher
	llm         llm.Completer
	validator   *itinerary.Validator
	metrics     *metrics.Metrics
	logger      *slog.Logger

	maxResults  int
	parallelism int
}

// Config wires a Toolbox.
type Config struct {
	Transcripts TranscriptSource
	Search      VideoSearcher
	LLM         llm.Completer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	// SearchMaxResults caps search_videos results.
	SearchMaxResults int
	// TranscribeParallelism bounds concurrent transcript fetches.
	TranscribeParallelism int
}

// New creates a Toolbox.
func New(cfg Config) *Toolbox {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LLM == nil {
		cfg.LLM = llm.Disabled{}
	}
	if cfg.SearchMaxResults <= 0 {
		cfg.SearchMaxResults = defaultSearchResult
	}
	if cfg.TranscribeParallelism <= 0 {
		cfg.TranscribeParallelism = 3
	}
	return &Toolbox{
		transcripts: cfg.Transcripts,
		search:      cfg.Search,
		llm:         cfg.LLM,
		validator:   itinerary.NewValidator(),
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		maxResults:  cfg.SearchMaxResults,
		parallelism: cfg.TranscribeParallelism,
	}
}

// Memorize stores a single string value.
func (tb *Toolbox) Memorize(s *state.State, key, value string) string {
	tb.metrics.ToolCall(ToolMemorize)

	k, err := state.ParseKey(key)
	if err != nil {
		return "Error: " + err.Error()
	}
	if err := s.Set(k, value); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf(`Stored "%s": "%s"`, key, value)
}

// MemorizeToList appends values not already present in the list at key.
func (tb *Toolbox) MemorizeToList(s *state.State, key string, values []string) string {
	tb.metrics.ToolCall(ToolMemorizeToList)

	k, err := state.ParseKey(key)
	if err != nil {
		return "Error: " + err.Error()
	}
	added, err := s.AppendUnique(k, values)
	if err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf(`Stored %d new items in "%s". Current list size: %d`, added, key, len(s.Strings(k)))
}

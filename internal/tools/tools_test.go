package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/ashureev/trip-planner/internal/youtube"
)

type fakeTranscripts struct {
	mu    sync.Mutex
	texts map[string]string
	calls []string
}

func (f *fakeTranscripts) Fetch(_ context.Context, u string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, u)
	return f.texts[u]
}

type fakeSearch struct {
	videos []youtube.Video
	err    error
	query  string
	limit  int
}

func (f *fakeSearch) Search(_ context.Context, q string, limit int) ([]youtube.Video, error) {
	f.query, f.limit = q, limit
	return f.videos, f.err
}

type fakeLLM struct {
	reply string
	err   error
	users []string
}

func (f *fakeLLM) Complete(_ context.Context, _ string, user string) (string, error) {
	f.users = append(f.users, user)
	return f.reply, f.err
}

func newToolbox(cfg Config) *Toolbox {
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg)
}

func TestMemorize(t *testing.T) {
	t.Parallel()

	tb := newToolbox(Config{})
	s := state.New()

	if got := tb.Memorize(s, "destination", "Tokyo"); got != `Stored "destination": "Tokyo"` {
		t.Fatalf("unexpected status %q", got)
	}
	if s.String(state.KeyDestination) != "Tokyo" {
		t.Fatal("destination not stored")
	}
	if got := tb.Memorize(s, "budget", "100"); !strings.HasPrefix(got, "Error:") {
		t.Fatalf("expected error status for unknown key, got %q", got)
	}
	if got := tb.Memorize(s, "ideas_videos", "u1"); !strings.HasPrefix(got, "Error:") {
		t.Fatalf("expected error status for list key, got %q", got)
	}
}

func TestMemorizeToList(t *testing.T) {
	t.Parallel()

	tb := newToolbox(Config{})
	s := state.New()

	tb.MemorizeToList(s, "ideas_videos", []string{"a", "b"})
	got := tb.MemorizeToList(s, "ideas_videos", []string{"b", "c"})
	if got != `Stored 1 new items in "ideas_videos". Current list size: 3` {
		t.Fatalf("unexpected status %q", got)
	}
	if got := tb.MemorizeToList(s, "destination", []string{"x"}); !strings.HasPrefix(got, "Error:") {
		t.Fatalf("expected error for scalar key, got %q", got)
	}
}

func TestSearchVideos(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{videos: []youtube.Video{
		{Title: "Tokyo guide", URL: "https://www.youtube.com/watch?v=v1", Duration: "12:05"},
		{Title: "Elsewhere", URL: "https://vimeo.com/1", Duration: "3:00"},
	}}
	tb := newToolbox(Config{Search: search, SearchMaxResults: 4})
	s := state.New()

	got := tb.SearchVideos(context.Background(), s, "things to do in Tokyo site:youtube.com")
	if got != "- **Tokyo guide** (12:05) - Link: https://www.youtube.com/watch?v=v1" {
		t.Fatalf("unexpected status %q", got)
	}
	if search.query != "things to do in Tokyo" || search.limit != 4 {
		t.Fatalf("unexpected search call %q/%d", search.query, search.limit)
	}
	if c := s.Strings(state.KeyVideoCandidates); len(c) != 1 {
		t.Fatalf("unexpected candidates %#v", c)
	}
}

func TestSearchVideosFailures(t *testing.T) {
	t.Parallel()

	s := state.New()
	if got := newToolbox(Config{Search: &fakeSearch{}}).SearchVideos(context.Background(), s, "x"); got != "No videos found." {
		t.Fatalf("unexpected status %q", got)
	}
	vimeo := &fakeSearch{videos: []youtube.Video{{URL: "https://vimeo.com/1"}}}
	if got := newToolbox(Config{Search: vimeo}).SearchVideos(context.Background(), s, "x"); got != "No valid YouTube links found." {
		t.Fatalf("unexpected status %q", got)
	}
	broken := &fakeSearch{err: errors.New("quota exceeded")}
	if got := newToolbox(Config{Search: broken}).SearchVideos(context.Background(), s, "x"); got != "Error performing video search: quota exceeded" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestTranscribeVideosBlockedFallback(t *testing.T) {
	t.Parallel()

	src := &fakeTranscripts{texts: map[string]string{
		"u1": "Error retrieving transcript: ERROR: HTTP Error 429: Too Many Requests",
	}}
	tb := newToolbox(Config{Transcripts: src})
	s := state.New()
	if err := s.Set(state.KeyIdeasVideos, []string{"u1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := tb.TranscribeVideos(context.Background(), s)
	if got != "Success: Transcribed 1 videos. 0 failed." {
		t.Fatalf("unexpected status %q", got)
	}
	raw := s.Strings(state.KeyIdeasRawText)
	if len(raw) != 1 || raw[0] != BlockedFallbackTranscript("u1") {
		t.Fatalf("expected fallback transcript, got %#v", raw)
	}
}

func TestTranscribeVideosPartial(t *testing.T) {
	t.Parallel()

	src := &fakeTranscripts{texts: map[string]string{
		"u1": "a real transcript about ramen shops",
		"u2": "Skipped: No subtitles found for u2",
		"u3": "Sign in to confirm you're not a bot",
		"u4": "Error retrieving transcript: private video",
	}}
	tb := newToolbox(Config{Transcripts: src, TranscribeParallelism: 2})
	s := state.New()
	if err := s.Set(state.KeyIdeasVideos, []string{"u1", "u2", "u3", "u4"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := tb.TranscribeVideos(context.Background(), s)
	want := "Partial Success: Transcribed 2 videos. Failures:\n" +
		"u2: Skipped: No subtitles found for u2\n" +
		"u4: Error retrieving transcript: private video"
	if got != want {
		t.Fatalf("unexpected status:\n%s\nwant:\n%s", got, want)
	}
	raw := s.Strings(state.KeyIdeasRawText)
	if len(raw) != 2 || raw[0] != "a real transcript about ramen shops" {
		t.Fatalf("transcripts out of order: %#v", raw)
	}
	if len(src.calls) != 4 {
		t.Fatalf("expected 4 fetches, got %d", len(src.calls))
	}
}

func TestTranscribeVideosEmpty(t *testing.T) {
	t.Parallel()

	got := newToolbox(Config{Transcripts: &fakeTranscripts{}}).TranscribeVideos(context.Background(), state.New())
	if got != "No videos found to transcribe." {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestCompactTravelIdeas(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Visit the Meiji Shrine early in the morning. ", 3)
	model := &fakeLLM{reply: "- Meiji Shrine: quiet forest"}
	tb := newToolbox(Config{LLM: model})
	s := state.New()
	if err := s.Set(state.KeyIdeasRawText, []string{long, "too short", "Skipped: nothing"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := tb.CompactTravelIdeas(context.Background(), s)
	if got != "Success: Compacted 1 transcripts into structured notes." {
		t.Fatalf("unexpected status %q", got)
	}
	refined := s.Strings(state.KeyIdeasRefinedText)
	if len(refined) != 1 || refined[0] != "--- Source 1 ---\n- Meiji Shrine: quiet forest" {
		t.Fatalf("unexpected refined notes %#v", refined)
	}
	if raw := s.Strings(state.KeyIdeasRawText); len(raw) != 0 {
		t.Fatalf("raw text should be cleared, got %#v", raw)
	}
	if len(model.users) != 1 {
		t.Fatalf("expected one model call, got %d", len(model.users))
	}
}

func TestCompactTravelIdeasModelFailureKeepsRaw(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 6000)
	tb := newToolbox(Config{LLM: &fakeLLM{err: errors.New("timeout")}})
	s := state.New()
	if err := s.Set(state.KeyIdeasRawText, []string{long}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got := tb.CompactTravelIdeas(context.Background(), s); got != "Success: Compacted 0 transcripts into structured notes." {
		t.Fatalf("unexpected status %q", got)
	}
	refined := s.Strings(state.KeyIdeasRefinedText)
	if len(refined) != 1 || len(refined[0]) != rawFallbackChars {
		t.Fatalf("expected clipped raw fallback, got %d entries", len(refined))
	}
}

func TestCompactTravelIdeasNothingToDo(t *testing.T) {
	t.Parallel()

	if got := newToolbox(Config{}).CompactTravelIdeas(context.Background(), state.New()); got != "No raw transcripts found to compact." {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestDraftItineraryFromModel(t *testing.T) {
	t.Parallel()

	reply := "```json\n" + `{"destination":"Tokyo","days":[{"day_number":1,"events":[{"location":"Senso-ji","description":"Temple","address":"Asakusa","start_time":"09:00","end_time":"10:30"}]}]}` + "\n```"
	model := &fakeLLM{reply: reply}
	tb := newToolbox(Config{LLM: model})
	s := state.New()
	_ = s.Set(state.KeyDestination, "Tokyo")
	_ = s.Set(state.KeyIdeasRefinedText, []string{"--- Source 1 ---\n- Senso-ji: temple"})

	got := tb.DraftItinerary(context.Background(), s, "start later please")
	if got != "Draft itinerary ready: 1 days, 1 events." {
		t.Fatalf("unexpected status %q", got)
	}
	draft, ok := s.Itinerary(state.KeyItineraryDraft)
	if !ok || draft.Days[0].Events[0].EventType != domain.DefaultEventType {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if !strings.Contains(model.users[0], "start later please") {
		t.Fatal("feedback not passed to the model")
	}
}

func TestDraftItineraryFallsBackToNotes(t *testing.T) {
	t.Parallel()

	tb := newToolbox(Config{})
	s := state.New()
	_ = s.Set(state.KeyDestination, "Tokyo")
	_ = s.Set(state.KeyIdeasRefinedText, []string{BlockedFallbackTranscript("u1")})

	got := tb.DraftItinerary(context.Background(), s, "")
	if got != "Draft itinerary ready: 3 days, 9 events." {
		t.Fatalf("unexpected status %q", got)
	}
	draft, _ := s.Itinerary(state.KeyItineraryDraft)
	if draft.Days[0].Events[0].Location != "Shibuya Crossing" {
		t.Fatalf("unexpected first event %+v", draft.Days[0].Events[0])
	}

	// The fallback always produces something save_itinerary accepts.
	if status := tb.SaveItinerary(s, draft); status != "Itinerary saved successfully. Return control to root." {
		t.Fatalf("fallback draft rejected: %s", status)
	}
}

func TestSaveItineraryValidation(t *testing.T) {
	t.Parallel()

	tb := newToolbox(Config{})
	s := state.New()

	bad := domain.Itinerary{
		Destination: "Tokyo",
		Days:        []domain.Day{{DayNumber: 1, Events: []domain.Event{{Location: "Senso-ji"}}}},
	}
	got := tb.SaveItinerary(s, bad)
	if !strings.HasPrefix(got, "Error: You missed required fields.") || !strings.Contains(got, "address") {
		t.Fatalf("unexpected status %q", got)
	}
	if s.Has(state.KeyItinerary) {
		t.Fatal("invalid itinerary must not be stored")
	}

	if got := tb.SaveItineraryJSON(s, []byte(`{"destination": [1]}`)); !strings.HasPrefix(got, "Error: You missed required fields.") {
		t.Fatalf("unexpected status %q", got)
	}
}

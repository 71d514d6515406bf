package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/ashureev/trip-planner/internal/tools"
	"github.com/samber/lo"
)

var (
	destinationPattern = regexp.MustCompile(`(?i)\b(?:go(?:ing)? to|visit(?:ing)?|trip to|travel(?:l?ing)? to|fly(?:ing)? to|destination(?: is)?:?)\s+([\p{L}][\p{L} .'-]*)`)
	trailingPattern    = regexp.MustCompile(`(?i)\s+(?:for|in|next|this|with|on)\b.*$`)
	indexPattern       = regexp.MustCompile(`\b\d{1,2}\b`)
	videoURLPattern    = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/watch\?v=[\w-]+|youtu\.be/[\w-]+)`)
	restartPattern     = regexp.MustCompile(`(?i)^\s*(?:start over|new trip|plan another trip|reset)\b`)
	greetingWords      = map[string]bool{"hi": true, "hello": true, "hey": true, "help": true, "yo": true, "thanks": true}
	approvalWords      = map[string]bool{"y": true, "yes": true, "yep": true, "yeah": true, "sure": true, "ok": true, "okay": true, "approve": true, "approved": true, "perfect": true, "great": true, "looks": true, "sounds": true, "save": true}
	changeWords        = map[string]bool{"but": true, "change": true, "add": true, "remove": true, "instead": true, "more": true, "less": true, "swap": true, "replace": true, "move": true, "without": true, "not": true, "no": true}
)

// Planner routes every message on the pipeline stage of the session state
// and calls the tools for that stage. Steps that need no user input run
// back to back within one turn.
type Planner struct {
	tools  *tools.Toolbox
	logger *slog.Logger
}

// NewPlanner creates a planner over tb.
func NewPlanner(tb *tools.Toolbox, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{tools: tb, logger: logger}
}

// Respond advances the pipeline for one user message.
func (p *Planner) Respond(ctx context.Context, sess *session.Session, message string) (string, error) {
	s := sess.State
	message = strings.TrimSpace(message)

	var greeting string
	if s.Bool(state.KeyJustRestored) {
		greeting = fmt.Sprintf("Welcome back! Picking up your trip to %s.\n\n", s.String(state.KeyDestination))
	}

	if s.String(state.KeyDestination) != "" && restartPattern.MatchString(message) {
		clearTrip(s)
		return greeting + "Starting a new trip. Where would you like to go?", nil
	}

	stage := s.Stage()
	p.logger.Debug("Planner routing", "session_id", sess.ID, "stage", stage)

	var reply string
	switch stage {
	case state.StageNoDestination:
		reply = p.askDestination(ctx, s, message)
	case state.StageHasDestinationNoVideos:
		reply = p.gatherVideos(ctx, s, message)
	case state.StageHasVideosNoText, state.StageHasRawText:
		reply = p.ingest(ctx, s)
	case state.StageHasRefinedText:
		reply = p.refine(ctx, s, message)
	case state.StageHasItinerary:
		reply = presentFinal(s)
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return greeting + reply, nil
}

func (p *Planner) askDestination(ctx context.Context, s *state.State, message string) string {
	dest := extractDestination(message)
	if dest == "" {
		return "Where would you like to go? Tell me a city or region and I'll find travel videos about it."
	}
	if status := p.tools.Memorize(s, string(state.KeyDestination), dest); strings.HasPrefix(status, "Error") {
		return status
	}
	return fmt.Sprintf("Great, %s it is.\n\n%s", dest, p.offerVideos(ctx, s, ""))
}

func (p *Planner) offerVideos(ctx context.Context, s *state.State, query string) string {
	if query == "" {
		query = "Top things to do in " + s.String(state.KeyDestination)
	}
	status := p.tools.SearchVideos(ctx, s, query)
	candidates := s.Strings(state.KeyVideoCandidates)
	if len(candidates) == 0 || !strings.HasPrefix(status, "- ") {
		return status + "\nTell me what to search for, or paste YouTube links you'd like me to use."
	}

	var b strings.Builder
	b.WriteString("Here are some videos I found:\n")
	for i, line := range strings.Split(status, "\n") {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimPrefix(line, "- "))
	}
	b.WriteString("\nWhich ones should I use? Reply with numbers like \"1,3\", \"all\", or paste links.")
	return b.String()
}

func (p *Planner) gatherVideos(ctx context.Context, s *state.State, message string) string {
	candidates := s.Strings(state.KeyVideoCandidates)
	chosen := parseSelection(message, candidates)
	if len(chosen) == 0 {
		return p.offerVideos(ctx, s, searchQuery(message))
	}

	status := p.tools.MemorizeToList(s, string(state.KeyIdeasVideos), chosen)
	if strings.HasPrefix(status, "Error") {
		return status
	}
	return status + "\n\n" + p.ingest(ctx, s)
}

// ingest runs transcription and compaction as far as the state allows and
// then drafts.
func (p *Planner) ingest(ctx context.Context, s *state.State) string {
	var steps []string
	if s.Stage() == state.StageHasVideosNoText {
		steps = append(steps, p.tools.TranscribeVideos(ctx, s))
	}
	if s.Stage() == state.StageHasRawText {
		steps = append(steps, p.tools.CompactTravelIdeas(ctx, s))
	}
	if s.Stage() != state.StageHasRefinedText {
		steps = append(steps, "I couldn't extract travel ideas from those videos. Pick other videos or paste different links.")
		resetVideos(s)
		return strings.Join(steps, "\n")
	}
	steps = append(steps, p.draft(ctx, s, ""))
	return strings.Join(steps, "\n\n")
}

func (p *Planner) refine(ctx context.Context, s *state.State, message string) string {
	draft, ok := s.Itinerary(state.KeyItineraryDraft)
	if !ok {
		return p.draft(ctx, s, "")
	}
	if isApproval(message) {
		status := p.tools.SaveItinerary(s, draft)
		if strings.HasPrefix(status, "Error") {
			return status + "\n\n" + p.draft(ctx, s, status)
		}
		s.Delete(state.KeyItineraryDraft)
		return presentFinal(s)
	}
	if message == "" {
		return formatItinerary(draft) + "\nDoes this itinerary look good?"
	}
	return p.draft(ctx, s, message)
}

func (p *Planner) draft(ctx context.Context, s *state.State, feedback string) string {
	status := p.tools.DraftItinerary(ctx, s, feedback)
	draft, ok := s.Itinerary(state.KeyItineraryDraft)
	if !ok {
		return status
	}
	return formatItinerary(draft) + "\nDoes this itinerary look good? Say \"yes\" to save it or tell me what to change."
}

func presentFinal(s *state.State) string {
	it, ok := s.Itinerary(state.KeyItinerary)
	if !ok {
		return "No itinerary has been saved yet."
	}
	return formatItinerary(it) + "\nYour trip planning is complete! Say \"start over\" to plan another trip."
}

func formatItinerary(it domain.Itinerary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Itinerary for %s\n", it.Destination)
	for _, d := range it.Days {
		fmt.Fprintf(&b, "\nDay %d\n", d.DayNumber)
		for _, ev := range d.Events {
			fmt.Fprintf(&b, "  %s-%s  %s: %s", ev.StartTime, ev.EndTime, ev.Location, ev.Description)
			if ev.BookingRequired {
				b.WriteString(" (booking required)")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// extractDestination pulls a place name out of free text. Short messages
// are taken as the name itself.
func extractDestination(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}
	if m := destinationPattern.FindStringSubmatch(message); m != nil {
		return cleanPlace(trailingPattern.ReplaceAllString(m[1], ""))
	}
	words := strings.Fields(message)
	if len(words) > 3 || greetingWords[strings.ToLower(strings.Trim(words[0], "!.,?"))] {
		return ""
	}
	return cleanPlace(message)
}

func cleanPlace(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ".!?,")
	if s == "" {
		return ""
	}
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// searchQuery returns message when it reads like a search request rather
// than a selection or small talk.
func searchQuery(message string) string {
	words := strings.Fields(message)
	if len(words) < 2 || indexPattern.MatchString(message) || greetingWords[strings.ToLower(strings.Trim(words[0], "!.,?"))] {
		return ""
	}
	return message
}

func isApproval(message string) bool {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!'
	})
	if len(words) == 0 || !approvalWords[words[0]] {
		return false
	}
	for _, w := range words {
		if changeWords[w] {
			return false
		}
	}
	return true
}

// parseSelection maps "all", 1-based indexes and pasted links onto video
// URLs, preserving order and dropping duplicates.
func parseSelection(message string, candidates []string) []string {
	lower := strings.ToLower(strings.TrimSpace(message))
	if len(candidates) > 0 && (lower == "all" || strings.HasPrefix(lower, "all ")) {
		return append([]string(nil), candidates...)
	}

	var chosen []string
	for _, idx := range indexPattern.FindAllString(videoURLPattern.ReplaceAllString(message, ""), -1) {
		n, err := strconv.Atoi(idx)
		if err == nil && n >= 1 && n <= len(candidates) {
			chosen = append(chosen, candidates[n-1])
		}
	}
	chosen = append(chosen, videoURLPattern.FindAllString(message, -1)...)
	return lo.Uniq(chosen)
}

func resetVideos(s *state.State) {
	s.Delete(state.KeyIdeasVideos)
	s.Delete(state.KeyIdeasRawText)
	s.Delete(state.KeyIdeasRefinedText)
}

func clearTrip(s *state.State) {
	for _, k := range []state.Key{
		state.KeyDestination,
		state.KeyVideoCandidates,
		state.KeyItineraryDraft,
		state.KeyItinerary,
	} {
		s.Delete(k)
	}
	resetVideos(s)
}

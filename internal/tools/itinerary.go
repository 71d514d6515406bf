package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/state"
)

const (
	eventsPerDay      = 3
	maxFallbackEvents = 9
)

const draftSystemPrompt = `You are a travel itinerary builder. Using the destination and the refined travel notes, produce a realistic day-by-day plan.
Respond with JSON only, no prose, matching exactly:
{"destination": "City", "days": [{"day_number": 1, "events": [{"event_type": "visit", "location": "Name of place", "description": "Short description", "address": "Address or area", "start_time": "09:00", "end_time": "11:00", "booking_required": false}]}]}
Times use 24h HH:MM. event_type is one of visit, lunch, dinner.`

var (
	fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	placePattern = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+(.+)$`)
)

var fallbackSlots = [eventsPerDay][2]string{
	{"09:00", "11:00"},
	{"13:00", "15:00"},
	{"18:00", "20:00"},
}

// DraftItinerary builds a candidate itinerary from the refined notes and
// stores it under itinerary_draft for the user to approve. feedback, when
// set, is passed to the model as revision instructions.
func (tb *Toolbox) DraftItinerary(ctx context.Context, s *state.State, feedback string) string {
	tb.metrics.ToolCall(ToolDraftItinerary)

	destination := s.String(state.KeyDestination)
	if destination == "" {
		return "Error: no destination set."
	}
	notes := s.Strings(state.KeyIdeasRefinedText)

	draft, err := tb.draftWithModel(ctx, destination, notes, feedback)
	if err != nil {
		tb.logger.Debug("Model draft unavailable, building itinerary from notes", "error", err)
		draft = FallbackItinerary(destination, notes)
	}

	if err := s.Set(state.KeyItineraryDraft, draft); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Draft itinerary ready: %d days, %d events.", len(draft.Days), draft.EventCount())
}

func (tb *Toolbox) draftWithModel(ctx context.Context, destination string, notes []string, feedback string) (domain.Itinerary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "DESTINATION: %s\n\nREFINED NOTES:\n%s\n", destination, strings.Join(notes, "\n\n"))
	if feedback != "" {
		fmt.Fprintf(&b, "\nREVISION REQUEST FROM THE TRAVELER:\n%s\n", feedback)
	}

	out, err := tb.llm.Complete(ctx, draftSystemPrompt, b.String())
	if err != nil {
		return domain.Itinerary{}, err
	}
	if m := fencePattern.FindStringSubmatch(strings.TrimSpace(out)); m != nil {
		out = m[1]
	}

	it, err := tb.validator.Decode([]byte(out))
	if err != nil {
		return domain.Itinerary{}, err
	}
	if it.EventCount() == 0 {
		return domain.Itinerary{}, errors.New("model returned an empty itinerary")
	}
	return it, nil
}

// FallbackItinerary lays out the places named in notes over consecutive
// days, three fixed slots per day.
func FallbackItinerary(destination string, notes []string) domain.Itinerary {
	var events []domain.Event
	seen := map[string]bool{}
	for _, block := range notes {
		for _, line := range strings.Split(block, "\n") {
			m := placePattern.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			name, desc, _ := strings.Cut(m[1], ":")
			name = strings.Trim(strings.TrimSpace(name), "*")
			desc = strings.TrimSpace(desc)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			if desc == "" {
				desc = "Recommended in travel videos"
			}
			events = append(events, domain.Event{
				EventType:   domain.DefaultEventType,
				Location:    name,
				Description: desc,
				Address:     destination,
			})
			if len(events) == maxFallbackEvents {
				break
			}
		}
		if len(events) == maxFallbackEvents {
			break
		}
	}
	if len(events) == 0 {
		events = append(events, domain.Event{
			EventType:   domain.DefaultEventType,
			Location:    destination + " city center",
			Description: "Explore the neighborhood on foot",
			Address:     destination,
		})
	}

	it := domain.Itinerary{Destination: destination}
	for i, ev := range events {
		slot := fallbackSlots[i%eventsPerDay]
		ev.StartTime, ev.EndTime = slot[0], slot[1]
		if i%eventsPerDay == 0 {
			it.Days = append(it.Days, domain.Day{DayNumber: len(it.Days) + 1})
		}
		day := &it.Days[len(it.Days)-1]
		day.Events = append(day.Events, ev)
	}
	return it
}

// SaveItinerary validates candidate and stores it as the final itinerary.
func (tb *Toolbox) SaveItinerary(s *state.State, candidate domain.Itinerary) string {
	tb.metrics.ToolCall(ToolSaveItinerary)

	if err := tb.validator.Validate(&candidate); err != nil {
		return "Error: You missed required fields. Please ensure every event has 'location', 'description', " +
			"'start_time', 'end_time', and 'address'. Details: " + err.Error()
	}
	if err := s.Set(state.KeyItinerary, candidate); err != nil {
		return "Error: " + err.Error()
	}
	tb.logger.Debug("Itinerary saved", "destination", candidate.Destination, "events", candidate.EventCount())
	return "Itinerary saved successfully. Return control to root."
}

// SaveItineraryJSON decodes a raw candidate and saves it.
func (tb *Toolbox) SaveItineraryJSON(s *state.State, raw []byte) string {
	var candidate domain.Itinerary
	if err := json.Unmarshal(raw, &candidate); err != nil {
		tb.metrics.ToolCall(ToolSaveItinerary)
		return "Error: You missed required fields. Please ensure every event has 'location', 'description', " +
			"'start_time', 'end_time', and 'address'. Details: " + err.Error()
	}
	return tb.SaveItinerary(s, candidate)
}

package itinerary

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
)

const validJSON = `{
	"destination": "Tokyo",
	"days": [{
		"day_number": 1,
		"events": [{
			"location": "Senso-ji",
			"description": "Oldest temple in Tokyo",
			"address": "2-3-1 Asakusa, Taito City",
			"start_time": "09:00",
			"end_time": "11:00"
		}]
	}]
}`

func TestDecodeAppliesDefaultEventType(t *testing.T) {
	t.Parallel()

	it, err := NewValidator().Decode([]byte(validJSON))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := it.Days[0].Events[0].EventType; got != domain.DefaultEventType {
		t.Fatalf("expected default event type, got %q", got)
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	t.Parallel()

	it := domain.Itinerary{
		Destination: "Tokyo",
		Days: []domain.Day{{
			DayNumber: 1,
			Events: []domain.Event{{
				Location: "Shibuya Crossing",
				EndTime:  "10:00",
			}},
		}},
	}

	err := NewValidator().Validate(&it)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Rule
	}
	for _, field := range []string{
		"days[0].events[0].description",
		"days[0].events[0].address",
		"days[0].events[0].start_time",
	} {
		if _, ok := got[field]; !ok {
			t.Errorf("missing error for %s in %v", field, verr.Fields)
		}
	}
	if _, ok := got["days[0].events[0].end_time"]; ok {
		t.Error("valid end_time reported as error")
	}
}

func TestValidateAcceptsFreeFormTimes(t *testing.T) {
	t.Parallel()

	for _, tm := range []string{"9:00", "9am", "morning"} {
		it := domain.Itinerary{
			Destination: "Tokyo",
			Days: []domain.Day{{
				DayNumber: 1,
				Events: []domain.Event{{
					Location:    "Meiji Shrine",
					Description: "Forest shrine",
					Address:     "Shibuya",
					StartTime:   tm,
					EndTime:     "11:00",
				}},
			}},
		}
		if err := NewValidator().Validate(&it); err != nil {
			t.Errorf("start_time %q rejected: %v", tm, err)
		}
	}
}

func TestValidateRejectsMissingDestinationAndBadDay(t *testing.T) {
	t.Parallel()

	it := domain.Itinerary{Days: []domain.Day{{DayNumber: 0}}}
	err := NewValidator().Validate(&it)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	msg := verr.Error()
	if !strings.Contains(msg, "destination") || !strings.Contains(msg, "days[0].day_number") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	t.Parallel()

	if _, err := NewValidator().Decode([]byte(`{"destination": 5}`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExportICS(t *testing.T) {
	t.Parallel()

	it, err := NewValidator().Decode([]byte(validJSON))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	it.Days = append(it.Days, domain.Day{
		DayNumber: 2,
		Events: []domain.Event{{
			EventType:       "dinner",
			Location:        "Omoide Yokocho",
			Description:     "Yakitori alley",
			Address:         "Shinjuku",
			StartTime:       "19:00",
			EndTime:         "21:00",
			BookingRequired: true,
		}},
	})

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	out, err := ExportICS(it, start, start)
	if err != nil {
		t.Fatalf("ExportICS failed: %v", err)
	}

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"SUMMARY:Senso-ji",
		"DTSTART:20250401T090000Z",
		"DTSTART:20250402T190000Z",
		"SUMMARY:Omoide Yokocho",
		"booking required",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in calendar:\n%s", want, out)
		}
	}
}

func TestExportICSLenientTimes(t *testing.T) {
	t.Parallel()

	it := domain.Itinerary{
		Destination: "Kyoto",
		Days: []domain.Day{{
			DayNumber: 1,
			Events: []domain.Event{
				{Location: "Fushimi Inari", StartTime: "9:00", EndTime: "11:30"},
				{Location: "Gion", StartTime: "7pm", EndTime: "9:30 PM"},
				{Location: "Arashiyama", StartTime: "morning", EndTime: "noon"},
			},
		}},
	}

	start := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
	out, err := ExportICS(it, start, start)
	if err != nil {
		t.Fatalf("ExportICS failed: %v", err)
	}
	for _, want := range []string{
		"DTSTART:20250403T090000Z",
		"DTSTART:20250403T190000Z",
		"DTEND:20250403T213000Z",
		"DTSTART;VALUE=DATE:20250403",
		"DTEND;VALUE=DATE:20250404",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in calendar:\n%s", want, out)
		}
	}
}

func TestExportICSEmpty(t *testing.T) {
	t.Parallel()

	_, err := ExportICS(domain.Itinerary{Destination: "Tokyo"}, time.Now(), time.Now())
	if !errors.Is(err, ErrEmptyItinerary) {
		t.Fatalf("expected ErrEmptyItinerary, got %v", err)
	}
}

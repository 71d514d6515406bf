package itinerary

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
	ics "github.com/arran4/golang-ical"
)

const productID = "-//trip-planner//itinerary//EN"

// ErrEmptyItinerary is returned when there is nothing to export.
var ErrEmptyItinerary = errors.New("itinerary has no events")

// ExportICS renders it as an iCalendar document. Day N of the itinerary is
// placed on start plus N-1 days, with event times interpreted in start's
// location.
func ExportICS(it domain.Itinerary, start time.Time, now time.Time) (string, error) {
	if it.EventCount() == 0 {
		return "", ErrEmptyItinerary
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Trip to " + it.Destination)

	day0 := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for _, d := range it.Days {
		date := day0.AddDate(0, 0, d.DayNumber-1)
		for i, ev := range d.Events {
			e := cal.AddEvent(fmt.Sprintf("day%d-event%d@trip-planner", d.DayNumber, i+1))
			e.SetDtStampTime(now)

			begin, okBegin := atClock(date, ev.StartTime)
			end, okEnd := atClock(date, ev.EndTime)
			if okBegin && okEnd {
				if end.Before(begin) {
					end = end.AddDate(0, 0, 1)
				}
				e.SetStartAt(begin)
				e.SetEndAt(end)
			} else {
				// Times the planner could not express as a clock reading
				// ("morning", "after lunch") become an all-day entry.
				e.SetAllDayStartAt(date)
				e.SetAllDayEndAt(date.AddDate(0, 0, 1))
			}
			e.SetSummary(ev.Location)
			e.SetLocation(ev.Address)
			e.SetDescription(describeEvent(ev))
		}
	}
	return cal.Serialize(), nil
}

var clockLayouts = []string{"15:04", "15.04", "3:04pm", "3:04 pm", "3pm", "3 pm"}

// atClock places a free-text time of day on date. It accepts 24h and 12h
// readings such as "09:00", "9:00", "9:30 PM" and "9am".
func atClock(date time.Time, raw string) (time.Time, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), true
		}
	}
	return time.Time{}, false
}

func describeEvent(ev domain.Event) string {
	desc := ev.Description
	if ev.EventType != "" {
		desc = "[" + ev.EventType + "] " + desc
	}
	if ev.BookingRequired {
		desc += " (booking required)"
	}
	return desc
}

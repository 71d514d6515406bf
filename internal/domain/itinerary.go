package domain

// DefaultEventType is applied to itinerary events that do not name a type.
const DefaultEventType = "visit"

// Event is a single scheduled activity within an itinerary day.
type Event struct {
	EventType       string `json:"event_type" yaml:"event_type"`
	Location        string `json:"location" yaml:"location" validate:"required"`
	Description     string `json:"description" yaml:"description" validate:"required"`
	Address         string `json:"address" yaml:"address" validate:"required"`
	// StartTime and EndTime are free text, normally HH:MM.
	StartTime       string `json:"start_time" yaml:"start_time" validate:"required"`
	EndTime         string `json:"end_time" yaml:"end_time" validate:"required"`
	BookingRequired bool   `json:"booking_required" yaml:"booking_required"`
}

// Day groups the events of one trip day.
type Day struct {
	DayNumber int     `json:"day_number" yaml:"day_number" validate:"gte=1"`
	Events    []Event `json:"events" yaml:"events" validate:"dive"`
}

// Itinerary is the finalized multi-day trip plan.
type Itinerary struct {
	Destination string `json:"destination" yaml:"destination" validate:"required"`
	Days        []Day  `json:"days" yaml:"days" validate:"dive"`
}

// Clone returns a deep copy of the itinerary.
func (it Itinerary) Clone() Itinerary {
	out := Itinerary{Destination: it.Destination}
	if it.Days != nil {
		out.Days = make([]Day, len(it.Days))
		for i, d := range it.Days {
			out.Days[i] = Day{DayNumber: d.DayNumber}
			if d.Events != nil {
				out.Days[i].Events = make([]Event, len(d.Events))
				copy(out.Days[i].Events, d.Events)
			}
		}
	}
	return out
}

// EventCount returns the number of events across all days.
func (it Itinerary) EventCount() int {
	n := 0
	for _, d := range it.Days {
		n += len(d.Events)
	}
	return n
}

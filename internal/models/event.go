package models

// EventTime is one endpoint of an event as the model and the Google Calendar API exchange it.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Complete reports whether the endpoint carries a usable dateTime.
func (t *EventTime) Complete() bool {
	return t != nil && t.DateTime != ""
}

// EventDetails is the loosely structured event payload emitted by the model
// inside a fenced JSON block.
type EventDetails struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	TimeZone    string     `json:"timeZone,omitempty"`
	Start       *EventTime `json:"start,omitempty"`
	End         *EventTime `json:"end,omitempty"`
}

// CalendarEventIntent is the tagged object the model returns when the user asks for an event.
type CalendarEventIntent struct {
	Type         string        `json:"type"`
	EventDetails *EventDetails `json:"eventDetails"`
}

// IntentCalendarEvent is the only intent type that triggers event creation.
const IntentCalendarEvent = "calendar_event"

// Event represents an event as stored by a calendar provider.
// This is an internal representation, independent of any specific calendar provider.
type Event struct {
	ID          string // Provider identifier
	Summary     string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
	HTMLLink    string // Link to the event in the provider's web UI
	UID         string // The iCalendar UID, used for mirroring
}

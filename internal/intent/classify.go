// Package intent decides what a model reply asks for and prepares event payloads
// for the calendar service.
package intent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"chatcal/internal/models"
)

// Kind is the classified purpose of a model reply.
type Kind int

const (
	KindIdeas Kind = iota
	KindEvent
)

func (k Kind) String() string {
	if k == KindEvent {
		return "calendar_event"
	}
	return "ideas"
}

// Classification is the outcome of Classify. Event is set only for KindEvent;
// Text always holds the raw reply.
type Classification struct {
	Kind  Kind
	Event *models.EventDetails
	Text  string
}

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)```")

// Classify inspects raw model output for a fenced JSON calendar-event block.
// Anything that is not a well-formed calendar_event object is idea text; the
// reason is passed to warn (when non-nil) instead of being returned.
func Classify(raw string, warn func(reason string, err error)) Classification {
	fallback := Classification{Kind: KindIdeas, Text: raw}

	m := fencedJSON.FindStringSubmatch(raw)
	if m == nil {
		return fallback
	}
	body, ok := extractJSONObject(m[1])
	if !ok {
		report(warn, "Fenced block holds no JSON object", nil)
		return fallback
	}

	var in models.CalendarEventIntent
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		report(warn, "Could not parse fenced JSON block", err)
		return fallback
	}
	if in.Type != models.IntentCalendarEvent || in.EventDetails == nil {
		report(warn, "Fenced JSON block is not a calendar event", fmt.Errorf("type %q, eventDetails present: %t", in.Type, in.EventDetails != nil))
		return fallback
	}

	return Classification{Kind: KindEvent, Event: in.EventDetails, Text: raw}
}

func report(warn func(string, error), reason string, err error) {
	if warn != nil {
		warn(reason, err)
	}
}

// extractJSONObject returns the first balanced {...} object in text.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1]), true
			}
		}
	}
	return "", false
}

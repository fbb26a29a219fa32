package chat

import (
	"fmt"
	"strings"
	"time"

	"chatcal/internal/ideas"
)

// Persona is the voice the model is asked to answer in.
type Persona struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultPersonas are the personas offered when none are configured.
var DefaultPersonas = []Persona{
	{Name: "Idea Generator", Description: "a creative startup advisor who proposes fresh, practical business ideas"},
	{Name: "Business Strategist", Description: "a pragmatic strategist focused on markets, revenue and competitive positioning"},
	{Name: "Tech Innovator", Description: "an engineer-founder who looks for ideas built on emerging technology"},
	{Name: "Social Entrepreneur", Description: "a founder who looks for ventures with a positive social or environmental impact"},
}

const ideaCount = 3

// buildPrompt assembles the full prompt for one attempt. now is rendered in
// loc so the model can resolve relative dates such as "tomorrow".
func buildPrompt(p Persona, message string, now time.Time, loc *time.Location) string {
	local := now.In(loc)
	labels := ideas.Labels()

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.Name, p.Description)
	fmt.Fprintf(&b, "The current date and time is %s (%s).\n\n", local.Format("Monday, 2006-01-02 15:04 MST"), loc.String())

	b.WriteString("If the user wants to schedule, book or add something to their calendar, reply ONLY with a JSON code block in exactly this shape:\n")
	b.WriteString("```json\n")
	fmt.Fprintf(&b, `{"type": "calendar_event", "eventDetails": {"summary": "...", "description": "...", "start": {"dateTime": "YYYY-MM-DDTHH:MM:SS±HH:MM", "timeZone": "%[1]s"}, "end": {"dateTime": "YYYY-MM-DDTHH:MM:SS±HH:MM", "timeZone": "%[1]s"}}}`, loc.String())
	b.WriteString("\n```\n\n")

	fmt.Fprintf(&b, "Otherwise reply with %d business ideas. Number each idea and use these labels, in this order, each followed by a colon:\n", ideaCount)
	fmt.Fprintf(&b, "1. %s: ...\n", labels[0])
	for _, l := range labels[1:] {
		fmt.Fprintf(&b, "%s: ...\n", l)
	}
	b.WriteString("\nUser: ")
	b.WriteString(strings.TrimSpace(message))
	b.WriteString("\n")
	return b.String()
}

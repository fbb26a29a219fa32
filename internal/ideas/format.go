// Package ideas turns free-form business-idea text from the model into
// uniformly rendered idea records.
package ideas

import (
	"fmt"
	"regexp"
	"strings"

	"chatcal/internal/models"
)

// Status tells the caller how much the formatter could extract.
type Status int

const (
	// Empty means no "N. Idea Name:" block was found.
	Empty Status = iota
	// Partial means at least one record has a defaulted field.
	Partial
	// Full means every field of every record was extracted.
	Full
)

func (s Status) String() string {
	switch s {
	case Partial:
		return "partial"
	case Full:
		return "full"
	default:
		return "empty"
	}
}

// Result is the formatter output.
type Result struct {
	Status  Status
	Records []models.IdeaRecord
	Text    string
}

// field is one labelled section of an idea block. Fields are listed in the
// order the model is asked to emit them; a value runs until any later label.
type field struct {
	label   string
	pattern string
	set     func(r *models.IdeaRecord, v string)
}

var fields = []field{
	{"Idea Name", `Idea Name`, func(r *models.IdeaRecord, v string) { r.Name = v }},
	{"Concept", `Concept`, func(r *models.IdeaRecord, v string) { r.Concept = v }},
	{"Key Features", `Key Features`, func(r *models.IdeaRecord, v string) { r.KeyFeatures = v }},
	{"Target Market", `Target Market`, func(r *models.IdeaRecord, v string) { r.TargetMarket = v }},
	{"Unique Value Proposition", `Unique Value Proposition`, func(r *models.IdeaRecord, v string) { r.UniqueValueProposition = v }},
	{"Monetization", `Monetization(?: Strategy)?`, func(r *models.IdeaRecord, v string) { r.Monetization = v }},
	{"Potential Challenges/Considerations", `Potential Challenges(?:\s*/\s*Considerations)?`, func(r *models.IdeaRecord, v string) { r.Challenges = v }},
	{"Summary", `Summary`, func(r *models.IdeaRecord, v string) { r.Summary = v }},
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	ideaSplit  = regexp.MustCompile(`(?i)\d+\.\s?\*{0,2}Idea Name\*{0,2}\s*:`)
	extractors = compileExtractors(fields)
)

// Labels returns the field labels in the order the model is asked to emit them.
func Labels() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.label
	}
	return out
}

func labelPattern(p string) string {
	return `\*{0,2}\s*` + p + `\s*\*{0,2}\s*:\s*\*{0,2}`
}

// compileExtractors builds one regexp per field capturing the text between its
// label and the first later label, or the end of the block.
func compileExtractors(fs []field) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(fs))
	for i, f := range fs {
		stops := make([]string, 0, len(fs)-i)
		for _, next := range fs[i+1:] {
			stops = append(stops, labelPattern(next.pattern))
		}
		stops = append(stops, `$`)
		expr := `(?is)` + labelPattern(f.pattern) + `\s*(.*?)\s*(?:` + strings.Join(stops, "|") + `)`
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// Format extracts idea records from raw model text and renders them.
func Format(raw string) Result {
	text := strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))

	segments := ideaSplit.Split(text, -1)
	if len(segments) < 2 {
		return Result{Status: Empty}
	}

	res := Result{Status: Full}
	// segments[0] is whatever preceded the first label.
	for i, seg := range segments[1:] {
		rec, complete := parseBlock("Idea Name: "+strings.TrimSpace(seg), i+1)
		if !complete {
			res.Status = Partial
		}
		res.Records = append(res.Records, rec)
	}
	res.Text = Render(res.Records)
	return res
}

func parseBlock(block string, index int) (models.IdeaRecord, bool) {
	var rec models.IdeaRecord
	complete := true
	for i, f := range fields {
		v := ""
		if m := extractors[i].FindStringSubmatch(block); m != nil {
			v = strings.Trim(m[1], " *")
		}
		if i == 0 {
			v = cleanName(v)
		}
		if v == "" {
			complete = false
			v = models.NotAvailable
			if i == 0 {
				v = fmt.Sprintf("Idea %d", index)
			}
		}
		f.set(&rec, v)
	}
	return rec, complete
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.Trim(s, "*_#•·-–:\" "))
}

// Render lays out records as numbered, labelled blocks separated by rules.
func Render(records []models.IdeaRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, r.Name)
		for j, v := range []string{
			r.Concept, r.KeyFeatures, r.TargetMarket, r.UniqueValueProposition,
			r.Monetization, r.Challenges, r.Summary,
		} {
			fmt.Fprintf(&b, "**%s:** %s\n", fields[j+1].label, v)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), " \n")
}

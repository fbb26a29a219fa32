package models

// NotAvailable marks an idea field the formatter could not extract.
const NotAvailable = "N/A"

// IdeaRecord is one business idea extracted from model output.
type IdeaRecord struct {
	Name                   string
	Concept                string
	KeyFeatures            string
	TargetMarket           string
	UniqueValueProposition string
	Monetization           string
	Challenges             string
	Summary                string
}

// Complete reports whether every field was extracted.
func (r IdeaRecord) Complete() bool {
	for _, v := range []string{
		r.Concept, r.KeyFeatures, r.TargetMarket, r.UniqueValueProposition,
		r.Monetization, r.Challenges, r.Summary,
	} {
		if v == NotAvailable {
			return false
		}
	}
	return r.Name != NotAvailable
}

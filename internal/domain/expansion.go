package domain

// Expansion is the label enrichment payload derived from the top labels.
type Expansion struct {
	Subtags         []string `json:"subtags"`
	StyleTraits     []string `json:"style_traits"`
	Emotions        []string `json:"emotions"`
	PackSuggestions []string `json:"pack_suggestions"`
}

// EmptyExpansion returns the canonical payload with every list present and empty.
func EmptyExpansion() Expansion {
	return Expansion{
		Subtags:         []string{},
		StyleTraits:     []string{},
		Emotions:        []string{},
		PackSuggestions: []string{},
	}
}

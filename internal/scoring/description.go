package scoring

import "strings"

const (
	descriptionSparse   = 40.0
	descriptionRambling = 70.0
	descriptionUseful   = 85.0

	sparseWordCount   = 5
	ramblingWordCount = 50
)

// DescriptionScore rates the informational value of a reporter's free-text
// description by word count alone. Very short text carries almost no
// identifying detail, very long text tends to be speculation, and anything
// in between is treated as genuinely useful.
func DescriptionScore(description string) float64 {
	words := len(strings.Fields(description))
	switch {
	case words < sparseWordCount:
		return descriptionSparse
	case words > ramblingWordCount:
		return descriptionRambling
	default:
		return descriptionUseful
	}
}

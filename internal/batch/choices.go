package batch

import (
	"slices"
	"time"
)

// Choices is the set of batches a form may submit and the one it preselects.
type Choices struct {
	Options []Token
	Default Token
}

// Allows reports whether t is one of the offered options.
func (c Choices) Allows(t Token) bool {
	return slices.Contains(c.Options, t)
}

// Locked reports whether the form offers exactly one batch.
func (c Choices) Locked() bool {
	return len(c.Options) == 1
}

// MemberChoices returns the batches offered when adding a member. Super
// admins may pick any batch from first up to next year's; everyone else is
// held to the batch in progress by the default cutover.
func MemberChoices(superAdmin bool, now time.Time, cutover time.Month, first int) Choices {
	current := Current(now, cutover)
	if !superAdmin {
		return Choices{Options: []Token{current}, Default: current}
	}
	return Choices{Options: Range(first, now.Year()+1), Default: current}
}

// AdminChoices returns the batches offered when creating an admin. Regular
// admins can only appoint admins for the coming batch.
func AdminChoices(superAdmin bool, now time.Time, first int) Choices {
	year := now.Year()
	if !superAdmin {
		next := New(year + 1)
		return Choices{Options: []Token{next}, Default: next}
	}
	return Choices{Options: Range(first, year+1), Default: New(year)}
}

// EditChoices returns the batches offered when editing an existing record.
func EditChoices(now time.Time, first int, current Token) Choices {
	return Choices{Options: Range(first, now.Year()+1), Default: current}
}

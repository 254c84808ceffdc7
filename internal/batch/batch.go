// Package batch derives academic batch tokens ("2024-2025") from calendar
// dates.
//
// Two cutovers are in use. Access checks treat June as the first month of a
// new batch; default selection on member forms waits until July. They are
// kept apart on purpose and are configured independently.
package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// GuardCutover is the first month of a batch for access decisions.
	GuardCutover = time.June

	// DefaultCutover is the first month of a batch when preselecting the
	// batch on member forms.
	DefaultCutover = time.July

	// FirstYear is the start year of the oldest batch offered on forms.
	FirstYear = 2019
)

var ErrInvalidToken = errors.New("batch: token must look like 2024-2025")

// Token identifies an academic batch. Its format is always "<Y>-<Y+1>".
type Token string

// New returns the token for the batch starting in year start.
func New(start int) Token {
	return Token(fmt.Sprintf("%d-%d", start, start+1))
}

// Current returns the batch in progress at now. A batch starts in the
// cutover month; earlier months belong to the batch that began the year
// before.
func Current(now time.Time, cutover time.Month) Token {
	start := now.Year()
	if now.Month() < cutover {
		start--
	}
	return New(start)
}

// Parse validates s and returns it as a Token.
func Parse(s string) (Token, error) {
	first, second, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return "", ErrInvalidToken
	}
	a, err := strconv.Atoi(first)
	if err != nil || len(first) != 4 {
		return "", ErrInvalidToken
	}
	b, err := strconv.Atoi(second)
	if err != nil || b != a+1 {
		return "", ErrInvalidToken
	}
	return New(a), nil
}

// Start returns the first year of the batch, or 0 if t is malformed.
func (t Token) Start() int {
	first, _, _ := strings.Cut(string(t), "-")
	n, _ := strconv.Atoi(first)
	return n
}

// Next returns the batch that follows t.
func (t Token) Next() Token {
	return New(t.Start() + 1)
}

func (t Token) String() string { return string(t) }

// Range returns the batches starting in from..to inclusive, newest first.
func Range(from, to int) []Token {
	if to < from {
		return nil
	}
	out := make([]Token, 0, to-from+1)
	for y := to; y >= from; y-- {
		out = append(out, New(y))
	}
	return out
}

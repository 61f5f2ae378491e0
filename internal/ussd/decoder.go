// Package ussd replays a USSD session from its cumulative input and renders the next screen.
package ussd

import "strings"

// Delimiter separates steps in the cumulative session text.
const Delimiter = "*"

// Steps is the decoded session history, oldest first.
type Steps []string

// Decode splits the cumulative text into steps. Empty text is zero steps. Empty tokens between
// delimiters are kept so that every later step keeps its position.
func Decode(text string) Steps {
	if text == "" {
		return nil
	}
	return strings.Split(text, Delimiter)
}

// Level is the number of steps submitted so far.
func (s Steps) Level() int { return len(s) }

// At returns the step at index i, or "" when the session is not that deep.
func (s Steps) At(i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}

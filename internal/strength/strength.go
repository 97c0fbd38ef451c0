// Package strength scores candidate passwords and generates random ones.
package strength

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Symbols counted as special characters.
const Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Labels, from weakest to strongest.
const (
	LabelVeryWeak   = "Very Weak"
	LabelWeak       = "Weak"
	LabelModerate   = "Moderate"
	LabelStrong     = "Strong"
	LabelVeryStrong = "Very Strong"
)

// CommonPatterns lower a score when found anywhere in the password,
// ignoring case.
var CommonPatterns = []string{"123456", "password", "qwerty", "abc", "000"}

// Result is the outcome of scoring a password.
type Result struct {
	Score       int      `json:"score"`
	Label       string   `json:"label"`
	Suggestions []string `json:"suggestions"`
}

// Score rates a password from 0 to 100. Length and character classes add
// points, common patterns and heavy repetition take them away. The highest
// reachable score is 85.
func Score(password string) Result {
	score := 0
	suggestions := []string{}

	length := utf8.RuneCountInString(password)
	switch {
	case length >= 12:
		score += 25
	case length >= 8:
		score += 15
	default:
		suggestions = append(suggestions, "Use at least 8 characters")
	}

	classes := []struct {
		has     func(rune) bool
		missing string
	}{
		{unicode.IsLower, "Add lowercase letters"},
		{unicode.IsUpper, "Add uppercase letters"},
		{unicode.IsDigit, "Add numbers"},
		{isSymbol, "Add special characters"},
	}
	for _, c := range classes {
		if strings.IndexFunc(password, c.has) >= 0 {
			score += 15
		} else {
			suggestions = append(suggestions, c.missing)
		}
	}

	lower := cases.Lower(language.Und).String(password)
	for _, pattern := range CommonPatterns {
		if strings.Contains(lower, pattern) {
			score -= 10
			suggestions = append(suggestions, fmt.Sprintf("Avoid common patterns like '%s'", pattern))
		}
	}

	if float64(distinctRunes(password)) < float64(length)*0.6 {
		score -= 10
		suggestions = append(suggestions, "Avoid too much repetition")
	}

	score = max(0, min(100, score))

	return Result{
		Score:       score,
		Label:       Label(score),
		Suggestions: suggestions,
	}
}

// Label maps a score to its strength label.
func Label(score int) string {
	switch {
	case score >= 80:
		return LabelVeryStrong
	case score >= 60:
		return LabelStrong
	case score >= 40:
		return LabelModerate
	case score >= 20:
		return LabelWeak
	default:
		return LabelVeryWeak
	}
}

func isSymbol(r rune) bool {
	return strings.ContainsRune(Symbols, r)
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}

package strength_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/zpass/internal/strength"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		score       int
		label       string
		suggestions []string
	}{
		{
			name:     "empty",
			password: "",
			score:    0,
			label:    strength.LabelVeryWeak,
			suggestions: []string{
				"Use at least 8 characters",
				"Add lowercase letters",
				"Add uppercase letters",
				"Add numbers",
				"Add special characters",
			},
		},
		{
			name:     "password",
			password: "password",
			// 15 length + 15 lowercase - 10 pattern
			score: 20,
			label: strength.LabelWeak,
			suggestions: []string{
				"Add uppercase letters",
				"Add numbers",
				"Add special characters",
				"Avoid common patterns like 'password'",
			},
		},
		{
			name:        "all classes long",
			password:    "Tr0ub4dor&3Zz",
			score:       85,
			label:       strength.LabelVeryStrong,
			suggestions: []string{},
		},
		{
			name:     "pattern matched case-insensitively",
			password: "QWERTYuiop1!",
			// 25 + 60 - 10
			score:       75,
			label:       strength.LabelStrong,
			suggestions: []string{"Avoid common patterns like 'qwerty'"},
		},
		{
			name:     "several patterns",
			password: "abc123456000",
			// 25 + 15 lower + 15 digit - 30
			score: 25,
			label: strength.LabelWeak,
			suggestions: []string{
				"Add uppercase letters",
				"Add special characters",
				"Avoid common patterns like '123456'",
				"Avoid common patterns like 'abc'",
				"Avoid common patterns like '000'",
			},
		},
		{
			name:     "repetition",
			password: "aaaaaaaa",
			// 15 + 15 - 10
			score: 20,
			label: strength.LabelWeak,
			suggestions: []string{
				"Add uppercase letters",
				"Add numbers",
				"Add special characters",
				"Avoid too much repetition",
			},
		},
		{
			name:     "clamped at zero",
			password: "000",
			score:    0,
			label:    strength.LabelVeryWeak,
			suggestions: []string{
				"Use at least 8 characters",
				"Add lowercase letters",
				"Add uppercase letters",
				"Add special characters",
				"Avoid common patterns like '000'",
				"Avoid too much repetition",
			},
		},
		{
			name:     "length counts characters not bytes",
			password: "éééééééé",
			// 8 runes: +15, lowercase +15, repetition -10
			score: 20,
			label: strength.LabelWeak,
			suggestions: []string{
				"Add uppercase letters",
				"Add numbers",
				"Add special characters",
				"Avoid too much repetition",
			},
		},
		{
			name:     "no symbols",
			password: "Summer2024",
			// 15 + 15 + 15 + 15
			score:       60,
			label:       strength.LabelStrong,
			suggestions: []string{"Add special characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strength.Score(tt.password)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.suggestions, got.Suggestions)
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, strength.LabelVeryWeak},
		{19, strength.LabelVeryWeak},
		{20, strength.LabelWeak},
		{39, strength.LabelWeak},
		{40, strength.LabelModerate},
		{59, strength.LabelModerate},
		{60, strength.LabelStrong},
		{79, strength.LabelStrong},
		{80, strength.LabelVeryStrong},
		{100, strength.LabelVeryStrong},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, strength.Label(tt.score), "score %d", tt.score)
	}
}

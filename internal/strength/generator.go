package strength

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Character sets used by the generator.
const (
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits    = "0123456789"
)

// DefaultLength of generated passwords.
const DefaultLength = 16

// MaxLength of generated passwords.
const MaxLength = 128

// ErrInvalidLength is returned for lengths outside 1..MaxLength.
var ErrInvalidLength = errors.New("invalid password length")

// GeneratorOptions selects the alphabet of a generated password.
type GeneratorOptions struct {
	Length    int  `mapstructure:"default_length" json:"length"`
	Uppercase bool `mapstructure:"include_uppercase" json:"uppercase"`
	Lowercase bool `mapstructure:"include_lowercase" json:"lowercase"`
	Numbers   bool `mapstructure:"include_numbers" json:"numbers"`
	Symbols   bool `mapstructure:"include_symbols" json:"symbols"`
}

// DefaultGeneratorOptions enables every class at DefaultLength.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Length:    DefaultLength,
		Uppercase: true,
		Lowercase: true,
		Numbers:   true,
		Symbols:   true,
	}
}

// Alphabet returns the characters a password may be drawn from. With no class
// selected it falls back to letters and digits.
func (o GeneratorOptions) Alphabet() string {
	var chars string
	if o.Lowercase {
		chars += Lowercase
	}
	if o.Uppercase {
		chars += Uppercase
	}
	if o.Numbers {
		chars += Digits
	}
	if o.Symbols {
		chars += Symbols
	}
	if chars == "" {
		chars = Lowercase + Uppercase + Digits
	}
	return chars
}

// Generate returns a random password drawn uniformly from the options' alphabet.
func Generate(opts GeneratorOptions) (string, error) {
	length := opts.Length
	if length == 0 {
		length = DefaultLength
	}
	if length < 1 || length > MaxLength {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	alphabet := opts.Alphabet()
	limit := big.NewInt(int64(len(alphabet)))

	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/zpass/internal/strength"
)

var strengthCmd = &cobra.Command{
	Use:   "strength [password]",
	Short: "Score a password",
	Long: `Strength scores a password from 0 to 100 and suggests improvements.
Without an argument the password is read without echo. Use "-" to read it
from standard input.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE:        runStrength,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password",
	Example: `  zpass generate
  zpass generate --length 24 --no-symbols`,
	RunE: runGenerate,
}

var (
	genLength    int
	genNoUpper   bool
	genNoLower   bool
	genNoNumbers bool
	genNoSymbols bool
	genCount     int
)

func init() {
	rootCmd.AddCommand(strengthCmd, generateCmd)

	f := generateCmd.Flags()
	f.IntVarP(&genLength, "length", "l", 0, "Password length (default from settings)")
	f.BoolVar(&genNoUpper, "no-upper", false, "Leave out uppercase letters")
	f.BoolVar(&genNoLower, "no-lower", false, "Leave out lowercase letters")
	f.BoolVar(&genNoNumbers, "no-numbers", false, "Leave out digits")
	f.BoolVar(&genNoSymbols, "no-symbols", false, "Leave out symbols")
	f.IntVarP(&genCount, "count", "n", 1, "How many passwords to print")
}

func runStrength(cmd *cobra.Command, args []string) error {
	var password string
	switch {
	case len(args) == 0:
		var err error
		password, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	case args[0] == "-":
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	default:
		password = args[0]
	}

	result := strength.Score(password)
	if jsonOutput {
		printJSON(result)
		return nil
	}

	scoreColor(result.Score).Printf("%d/100 %s\n", result.Score, result.Label)
	for _, s := range result.Suggestions {
		fmt.Printf("  - %s\n", s)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts := apiClient.Settings.Generator
	if genLength > 0 {
		opts.Length = genLength
	}
	if genNoUpper {
		opts.Uppercase = false
	}
	if genNoLower {
		opts.Lowercase = false
	}
	if genNoNumbers {
		opts.Numbers = false
	}
	if genNoSymbols {
		opts.Symbols = false
	}

	var passwords []string
	for i := 0; i < genCount; i++ {
		pw, err := strength.Generate(opts)
		if err != nil {
			return err
		}
		passwords = append(passwords, pw)
	}

	if jsonOutput {
		out := make([]map[string]interface{}, 0, len(passwords))
		for _, pw := range passwords {
			out = append(out, map[string]interface{}{
				"password": pw,
				"strength": strength.Score(pw),
			})
		}
		printJSON(out)
		return nil
	}

	for _, pw := range passwords {
		fmt.Println(pw)
	}
	return nil
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen, color.Bold)
	case score >= 60:
		return color.New(color.FgGreen)
	case score >= 40:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/TheMichaelB/zpass/internal/models"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	labelColor   = color.New(color.Faint)
)

func printSuccess(format string, args ...interface{}) {
	successColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	if jsonOutput {
		return
	}
	warningColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printField(label string, value interface{}) {
	fmt.Printf("%s %v\n", labelColor.Sprintf("%-12s", label+":"), value)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		printError("encode output: %v", err)
	}
}

// reportError prints a failed command's error in the selected format.
func reportError(err error) {
	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":   false,
			"error":     err.Error(),
			"code":      models.ErrorCode(err),
			"retryable": models.IsRetryable(err),
		})
		return
	}
	printError("Error: %v", err)

	switch {
	case errors.Is(err, models.ErrNotAuthenticated):
		printInfo("Run 'zpass login' first.")
	case models.IsRetryable(err):
		printInfo("The server could not be reached. Try again later.")
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch models.ErrorCode(err) {
	case models.ErrCodeAuth:
		return 2
	case models.ErrCodeNetwork:
		return 3
	default:
		return 1
	}
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return "", err
	}

	return string(password), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "••••••••"
}

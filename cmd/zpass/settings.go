package main

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/zpass/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change preferences",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference",
	Long: `Set changes one preference and saves the settings file.

Keys:
  server             official, localhost, or a URL for a custom server
  username           remembered account name
  auto-lock          idle time before locking, e.g. 10m; "off" disables
  clipboard-timeout  how long copied passwords stay on the clipboard
  sync-on-changes    upload after every change (true/false)
  generator-length   default generated password length
  generator-symbols  include symbols in generated passwords (true/false)
  theme              dark or light`,
	Example: `  zpass settings set server http://127.0.0.1:5000
  zpass settings set auto-lock 5m`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	s := apiClient.Settings
	if jsonOutput {
		printJSON(s)
		return nil
	}

	printField("File", apiClient.SettingsPath())
	server, err := s.ServerURL()
	if err != nil {
		server = err.Error()
	}
	printField("Server", fmt.Sprintf("%s (%s)", s.CurrentServer, server))
	printField("Username", s.Username)
	if d := s.EffectiveAutoLock(); d > 0 {
		printField("Auto-lock", d)
	} else {
		printField("Auto-lock", "off")
	}
	printField("Clipboard", s.Clipboard.Timeout)
	printField("Auto-sync", s.Sync.AutoSync && s.Sync.OnChanges)
	printField("Generator", fmt.Sprintf("%d chars, symbols %v", s.Generator.Length, s.Generator.Symbols))
	printField("Theme", s.Theme)

	names := make([]string, 0, len(s.Servers))
	for name := range s.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %s\n", name, s.Servers[name])
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	s := *apiClient.Settings
	s.Servers = maps.Clone(s.Servers)

	if err := applySetting(&s, key, value); err != nil {
		return err
	}
	if err := apiClient.SaveSettings(&s); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "key": key, "value": value})
		return nil
	}
	printSuccess("%s = %s", key, value)
	return nil
}

func applySetting(s *config.Settings, key, value string) error {
	switch key {
	case "server":
		if _, ok := s.Servers[value]; ok && value != "custom" {
			s.CurrentServer = value
		} else if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			s.SetCustomServer(value)
		} else {
			return fmt.Errorf("unknown server %q", value)
		}
	case "username":
		s.Username = value
		s.RememberCredentials = value != ""
	case "auto-lock":
		if value == "off" || value == "0" {
			s.Security.AutoLockEnabled = false
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("auto-lock: %w", err)
		}
		s.Security.AutoLockEnabled = true
		s.Security.AutoLockTimeout = d
	case "clipboard-timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("clipboard-timeout: %w", err)
		}
		s.Clipboard.Timeout = d
		s.Clipboard.Clear = d > 0
	case "sync-on-changes":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("sync-on-changes: %w", err)
		}
		s.Sync.OnChanges = b
		s.Sync.AutoSync = b || s.Sync.AutoSync
	case "generator-length":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("generator-length: %w", err)
		}
		s.Generator.Length = n
	case "generator-symbols":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("generator-symbols: %w", err)
		}
		s.Generator.Symbols = b
	case "theme":
		if value != "dark" && value != "light" {
			return fmt.Errorf("theme must be dark or light")
		}
		s.Theme = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

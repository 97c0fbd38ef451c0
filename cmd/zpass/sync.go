package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/services/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Check the remote vault opens, optionally re-encrypting it",
	Long: `Sync downloads and decrypts the remote vault. With --reseal it uploads the
vault again under a fresh salt and the configured cipher, which moves a CBC
vault to an authenticated format when crypto.scheme selects one.

There is no merge: the last upload wins.`,
	RunE: runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show login and vault status",
	RunE:  runStatus,
}

var watchCmd = &cobra.Command{
	Use:         "watch",
	Short:       "Keep the vault unlocked and follow remote changes",
	Annotations: map[string]string{annotationWatch: "true"},
	RunE:        runWatch,
}

var (
	syncReseal   bool
	statusUnlock bool
	statusVerify bool
)

func init() {
	rootCmd.AddCommand(syncCmd, statusCmd, watchCmd)

	syncCmd.Flags().BoolVar(&syncReseal, "reseal", false,
		"Re-encrypt the vault with a fresh salt and the configured cipher")
	statusCmd.Flags().BoolVar(&statusUnlock, "unlock", false, "Unlock to count entries")
	statusCmd.Flags().BoolVar(&statusVerify, "verify", false, "Ask the server whether the token is valid")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	if err := unlockVault(ctx); err != nil {
		return err
	}

	if syncReseal {
		if err := apiClient.Sync.Mutate(func(v *models.Vault) error { return nil }); err != nil {
			return err
		}
	}
	if err := syncChanges(ctx); err != nil {
		return err
	}

	status := apiClient.Sync.Status()
	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"status":   status,
			"duration": time.Since(start).String(),
		})
		return nil
	}

	printSuccess("Vault in sync (%d entries)", status.Entries)
	if syncReseal {
		printInfo("Re-encrypted with %s", status.Scheme)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	result := map[string]interface{}{
		"server":  cfg.API.BaseURL,
		"backend": cfg.Remote.Backend,
	}

	token, err := apiClient.Auth.GetToken()
	loggedIn := err == nil
	result["logged_in"] = loggedIn
	if loggedIn {
		result["username"] = token.Username
		result["token_issued"] = token.IssuedAt
	}

	if statusVerify && loggedIn {
		if _, err := apiClient.Auth.Verify(ctx); err != nil {
			result["token_valid"] = false
			result["verify_error"] = err.Error()
		} else {
			result["token_valid"] = true
		}
	}

	if statusUnlock {
		if err := unlockVault(ctx); err != nil {
			return err
		}
	}
	status := apiClient.Sync.Status()
	result["vault"] = status

	if jsonOutput {
		printJSON(result)
		return nil
	}

	printField("Server", cfg.API.BaseURL)
	printField("Backend", cfg.Remote.Backend)
	if loggedIn {
		printField("Account", token.Username)
	} else {
		printField("Account", "not logged in")
	}
	if v, ok := result["token_valid"]; ok {
		printField("Token", map[bool]string{true: "valid", false: "rejected"}[v.(bool)])
	}
	printField("Vault", status.State.String())
	if statusUnlock {
		printField("Entries", status.Entries)
		printField("Notes", status.Notes)
		printField("Categories", status.Categories)
	}
	printField("Cipher", status.Scheme)
	printField("Last sync", formatTime(status.LastSync))
	if status.LastError != "" {
		printField("Last error", status.LastError)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	if !jsonOutput {
		printInfo("Watching %s for vault changes (Ctrl+C to stop)", cfg.API.BaseURL)
	}

	for {
		select {
		case <-ctx.Done():
			res := apiClient.Sync.Lock()
			if res.DiscardedChanges > 0 {
				printWarning("Discarded %d unsynced changes", res.DiscardedChanges)
			}
			return nil

		case event := <-apiClient.Sync.Events():
			if jsonOutput {
				out := map[string]interface{}{
					"type":      event.Type,
					"timestamp": event.Timestamp,
					"state":     event.State,
				}
				if event.Error != nil {
					out["error"] = event.Error.Error()
				}
				printJSON(out)
				continue
			}

			line := fmt.Sprintf("%s  %-15s %s", event.Timestamp.Local().Format("15:04:05"), event.Type, event.State)
			switch event.Type {
			case sync.EventSyncFailed:
				printError("%s: %v", line, event.Error)
			case sync.EventLocked:
				printWarning("%s", line)
				return nil
			default:
				printInfo("%s", line)
			}
		}
	}
}

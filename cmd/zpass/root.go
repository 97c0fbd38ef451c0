package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/zpass/internal/client"
	"github.com/TheMichaelB/zpass/internal/config"
	"github.com/TheMichaelB/zpass/internal/events"
)

// Command annotations read by the root pre-run.
const (
	annotationNoClient = "zpass/no-client"
	annotationWatch    = "zpass/watch"
)

var (
	cfgFile    string
	serverURL  string
	logLevel   string
	jsonOutput bool

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "zpass",
	Short: "Command-line client for a zPass password vault",
	Long: `zpass keeps an encrypted password vault in step with a remote store.

The vault is encrypted on this machine with a key derived from your master
password. The server only ever stores ciphertext.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.zpass/zpass.json)")
	flags.StringVar(&serverURL, "server", "", "vault API base URL")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
}

func setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	v := loader.Viper()
	if f := cmd.Flags().Lookup("server"); f != nil && f.Changed {
		v.Set("api.base_url", serverURL)
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		v.Set("log.level", logLevel)
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if jsonOutput {
		cfg.Log.Color = false
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)
	if f := loader.ConfigFile(); f != "" {
		logger.WithField("file", f).Debug("Loaded config")
	}

	if cmd.Annotations[annotationNoClient] == "true" {
		return nil
	}
	if cmd.Annotations[annotationWatch] == "true" {
		cfg.Session.WatchRemote = true
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx := events.WithLogger(cmd.Context(), logger)
	ctx = events.WithRequestID(ctx, uuid.NewString())

	apiClient, err = client.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	cmd.SetContext(events.WithAccountID(ctx, apiClient.AccountID()))
	return nil
}

// unlockVault opens the session, prompting for the master password unless
// the credentials already carry it.
func unlockVault(ctx context.Context) error {
	password := ""
	if !apiClient.HasStoredMasterPassword() {
		var err error
		password, err = promptPassword("Master password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if err := apiClient.Unlock(ctx, password); err != nil {
		return err
	}

	// Changes stashed by an earlier failed sync come back as a Dirty session.
	if n := apiClient.Sync.Status().PendingChanges; n > 0 {
		if err := apiClient.Sync.Sync(ctx); err != nil {
			events.FromContext(ctx).WithError(err).Debug("Upload of stashed changes failed")
			printWarning("%d changes from an earlier session are still waiting to upload.", n)
		} else if !jsonOutput {
			printInfo("Uploaded %d changes saved by an earlier session.", n)
		}
	}
	return nil
}

// syncChanges uploads pending changes. When the upload fails the changes are
// stashed encrypted in the local cache so the next unlock can retry them.
func syncChanges(ctx context.Context) error {
	err := apiClient.Sync.Sync(ctx)
	if err == nil {
		return nil
	}
	events.FromContext(ctx).WithError(err).Debug("Sync failed")

	n, stashErr := apiClient.Sync.Stash(context.WithoutCancel(ctx))
	switch {
	case stashErr != nil:
		printError("Changes were NOT saved: %v", stashErr)
	case n > 0:
		printWarning("Upload failed. %d unsynced changes are stored encrypted on this device and upload at the next unlock.", n)
	}
	return fmt.Errorf("sync: %w", err)
}

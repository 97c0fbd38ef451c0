package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/zpass/internal/models"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the vault server",
	Long:  `Login stores a bearer token for future vault operations.`,
	Example: `  zpass login --username alice
  zpass login --username alice --server http://127.0.0.1:5000`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved token",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:     "register",
	Short:   "Create an account on the vault server",
	Example: `  zpass register --username alice --email alice@example.com`,
	RunE:    runRegister,
}

var (
	loginUsername string
	loginPassword string
	registerEmail string
)

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "",
		"Account username (falls back to the credentials file)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "",
		"Account password (will prompt if not provided)")

	registerCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account username (required)")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Email address (required)")
	registerCmd.Flags().StringVarP(&loginPassword, "password", "p", "",
		"Account password (will prompt if not provided)")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if loginPassword == "" && cfg.Auth.Password == "" && !hasCredentialsFile() {
		var err error
		loginPassword, err = promptPassword("Account password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if loginUsername == "" {
		loginUsername = cfg.Auth.Username
	}

	token, err := apiClient.Auth.Login(ctx, loginUsername, loginPassword)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"username": token.Username,
			"server":   token.Server,
		})
		return nil
	}
	printSuccess("Logged in as %s on %s", token.Username, token.Server)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	res, err := apiClient.Sync.Logout(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":           true,
			"discarded_changes": res.DiscardedChanges,
		})
		return nil
	}
	printSuccess("Logged out")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if loginPassword == "" {
		first, err := promptPassword("Account password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		second, err := promptPassword("Repeat password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if first != second {
			return fmt.Errorf("passwords do not match")
		}
		loginPassword = first
	}

	user, err := apiClient.Auth.Register(ctx, models.RegisterRequest{
		Username: loginUsername,
		Email:    registerEmail,
		Password: loginPassword,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"user":    user,
		})
		return nil
	}
	printSuccess("Account %s created. Run 'zpass login' to sign in.", user.Username)
	return nil
}

func hasCredentialsFile() bool {
	return cfg.Auth.CredentialsFile != "" || cfg.Auth.CredentialsSecret != ""
}

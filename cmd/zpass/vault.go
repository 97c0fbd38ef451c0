package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/strength"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List password entries",
	Example: `  zpass list
  zpass list --search github
  zpass list --category Work --favorites`,
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a password entry",
	Example: `  zpass add --title GitHub --username alice --website https://github.com
  zpass add --title Bank --generate --category Finance`,
	RunE: runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an entry",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var categoryCmd = &cobra.Command{
	Use:   "category [name]",
	Short: "List categories, or add one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCategory,
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage secure notes",
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secure notes",
	RunE:  runNoteList,
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a secure note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteAdd,
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a secure note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteDelete,
}

var (
	listSearch    string
	listCategory  string
	listFavorites bool
	showReveal    bool

	entryTitle    string
	entryUsername string
	entryEmail    string
	entryPassword string
	entryWebsite  string
	entryCategory string
	entryNotes    string
	entryTags     string
	entryFavorite bool
	entryReprompt bool
	entryGenerate bool

	noteContent string
)

func init() {
	rootCmd.AddCommand(listCmd, showCmd, addCmd, editCmd, deleteCmd, categoryCmd, noteCmd)
	noteCmd.AddCommand(noteListCmd, noteAddCmd, noteDeleteCmd)

	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Filter by text")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Only favorites")

	showCmd.Flags().BoolVarP(&showReveal, "reveal", "r", false, "Print the password")

	for _, c := range []*cobra.Command{addCmd, editCmd} {
		f := c.Flags()
		f.StringVarP(&entryTitle, "title", "t", "", "Title")
		f.StringVarP(&entryUsername, "username", "u", "", "Username")
		f.StringVar(&entryEmail, "email", "", "Email")
		f.StringVarP(&entryPassword, "password", "p", "", "Password (will prompt if not provided)")
		f.StringVarP(&entryWebsite, "website", "w", "", "Website")
		f.StringVar(&entryCategory, "category", "", "Category")
		f.StringVar(&entryNotes, "notes", "", "Notes")
		f.StringVar(&entryTags, "tags", "", "Comma-separated tags")
		f.BoolVar(&entryFavorite, "favorite", false, "Mark as favorite")
		f.BoolVar(&entryReprompt, "reprompt", false, "Ask for the master password before showing")
		f.BoolVarP(&entryGenerate, "generate", "g", false, "Generate a password")
	}
	_ = addCmd.MarkFlagRequired("title")

	noteAddCmd.Flags().StringVar(&noteContent, "content", "", "Note text")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := unlockVault(cmd.Context()); err != nil {
		return err
	}

	vault, err := apiClient.Sync.Vault()
	if err != nil {
		return err
	}

	var entries []models.PasswordEntry
	for _, e := range vault.Search(listSearch) {
		if listCategory != "" && e.Category != listCategory {
			continue
		}
		if listFavorites && !e.Favorite {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
	})

	if jsonOutput {
		// Passwords stay out of listings
		for i := range entries {
			entries[i].Password = ""
		}
		printJSON(entries)
		return nil
	}

	if len(entries) == 0 {
		printInfo("No entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUSERNAME\tCATEGORY\tWEBSITE")
	for _, e := range entries {
		title := e.Title
		if e.Favorite {
			title = "★ " + title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(e.ID), title, e.Username, e.Category, e.Website)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := unlockVault(cmd.Context()); err != nil {
		return err
	}

	e, err := findEntry(args[0])
	if err != nil {
		return err
	}

	if e.RequireReprompt && showReveal && !apiClient.HasStoredMasterPassword() {
		again, err := promptPassword("Master password (again): ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if !apiClient.Sync.VerifyPassword(again) {
			return &models.AuthenticationError{Reason: "master password does not match"}
		}
	}

	score := strength.Score(e.Password)
	password := maskSecret(e.Password)
	if showReveal {
		password = e.Password
	}

	if jsonOutput {
		if !showReveal {
			e.Password = ""
		}
		printJSON(map[string]interface{}{
			"entry":    e,
			"strength": score,
		})
		return nil
	}

	printField("ID", e.ID)
	printField("Title", e.Title)
	printField("Username", e.Username)
	printField("Email", e.Email)
	printField("Password", password)
	printField("Strength", fmt.Sprintf("%d (%s)", score.Score, score.Label))
	printField("Website", e.Website)
	printField("Category", e.Category)
	printField("Tags", e.Tags.String())
	printField("Favorite", e.Favorite)
	printField("Created", formatTime(e.CreatedAt.Time))
	printField("Modified", formatTime(e.ModifiedAt.Time))
	if e.Notes != "" {
		printField("Notes", e.Notes)
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	password, err := entrySecret()
	if err != nil {
		return err
	}

	added, err := apiClient.Sync.AddEntry(models.PasswordEntry{
		Title:           entryTitle,
		Username:        entryUsername,
		Email:           entryEmail,
		Password:        password,
		Website:         entryWebsite,
		Category:        entryCategory,
		Notes:           entryNotes,
		Tags:            models.ParseTags(entryTags),
		Favorite:        entryFavorite,
		RequireReprompt: entryReprompt,
	})
	if err != nil {
		return err
	}
	if err := syncChanges(ctx); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": added.ID})
		return nil
	}
	printSuccess("Added %s (%s)", added.Title, shortID(added.ID))
	if score := strength.Score(password); score.Score < 50 {
		printWarning("Password strength: %s", score.Label)
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	e, err := findEntry(args[0])
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("title") {
		e.Title = entryTitle
	}
	if f.Changed("username") {
		e.Username = entryUsername
	}
	if f.Changed("email") {
		e.Email = entryEmail
	}
	if f.Changed("password") || entryGenerate {
		if e.Password, err = entrySecret(); err != nil {
			return err
		}
	}
	if f.Changed("website") {
		e.Website = entryWebsite
	}
	if f.Changed("category") {
		e.Category = entryCategory
	}
	if f.Changed("notes") {
		e.Notes = entryNotes
	}
	if f.Changed("tags") {
		e.Tags = models.ParseTags(entryTags)
	}
	if f.Changed("favorite") {
		e.Favorite = entryFavorite
	}
	if f.Changed("reprompt") {
		e.RequireReprompt = entryReprompt
	}

	updated, err := apiClient.Sync.UpdateEntry(e)
	if err != nil {
		return err
	}
	if err := syncChanges(ctx); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": updated.ID})
		return nil
	}
	printSuccess("Updated %s", updated.Title)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	e, err := findEntry(args[0])
	if err != nil {
		return err
	}
	if err := apiClient.Sync.DeleteEntry(e.ID); err != nil {
		return err
	}
	if err := syncChanges(ctx); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": e.ID})
		return nil
	}
	printSuccess("Deleted %s", e.Title)
	return nil
}

func runCategory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	if len(args) == 1 {
		if err := apiClient.Sync.AddCategory(args[0]); err != nil {
			return err
		}
		if err := syncChanges(ctx); err != nil {
			return err
		}
	}

	vault, err := apiClient.Sync.Vault()
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(vault.Categories)
		return nil
	}
	for _, c := range vault.Categories {
		fmt.Printf("%s (%d)\n", c, len(vault.ByCategory(c)))
	}
	return nil
}

func runNoteList(cmd *cobra.Command, args []string) error {
	if err := unlockVault(cmd.Context()); err != nil {
		return err
	}
	vault, err := apiClient.Sync.Vault()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(vault.Notes)
		return nil
	}
	for _, n := range vault.Notes {
		printField(shortID(n.ID), n.Title)
	}
	return nil
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	n, err := apiClient.Sync.AddNote(models.Note{Title: args[0], Content: noteContent})
	if err != nil {
		return err
	}
	if err := syncChanges(ctx); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": n.ID})
		return nil
	}
	printSuccess("Added note %s (%s)", n.Title, shortID(n.ID))
	return nil
}

func runNoteDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := unlockVault(ctx); err != nil {
		return err
	}

	vault, err := apiClient.Sync.Vault()
	if err != nil {
		return err
	}
	n, err := resolveID(vault.Notes, func(n models.Note) string { return n.ID }, args[0], models.ErrNoteNotFound)
	if err != nil {
		return err
	}

	if err := apiClient.Sync.DeleteNote(n.ID); err != nil {
		return err
	}
	if err := syncChanges(ctx); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": n.ID})
		return nil
	}
	printSuccess("Deleted note %s", n.Title)
	return nil
}

// findEntry resolves a full ID or a unique ID prefix.
func findEntry(id string) (models.PasswordEntry, error) {
	if e, err := apiClient.Sync.Entry(id); err == nil {
		return e, nil
	}

	vault, err := apiClient.Sync.Vault()
	if err != nil {
		return models.PasswordEntry{}, err
	}
	return resolveID(vault.Passwords, func(e models.PasswordEntry) string { return e.ID }, id, models.ErrEntryNotFound)
}

// resolveID finds the item whose ID equals id or, failing that, the only
// item whose ID starts with it.
func resolveID[T any](items []T, idOf func(T) string, id string, notFound error) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: empty id", notFound)
	}
	var matches []T
	for _, item := range items {
		switch {
		case idOf(item) == id:
			return item, nil
		case strings.HasPrefix(idOf(item), id):
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%w: %s", notFound, id)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("id prefix %q matches %d items", id, len(matches))
	}
}

// entrySecret returns the password from flags, the generator or a prompt.
func entrySecret() (string, error) {
	if entryGenerate {
		return strength.Generate(apiClient.Settings.Generator)
	}
	if entryPassword != "" {
		return entryPassword, nil
	}
	pw, err := promptPassword("Entry password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package models

import (
	"fmt"
	"slices"
	"strings"
)

// CurrentSchemaVersion is the vault document version this build writes.
const CurrentSchemaVersion = 2

// Vault is the decrypted secrets collection held by an unlocked session.
type Vault struct {
	SchemaVersion int             `json:"schema_version"`
	Passwords     []PasswordEntry `json:"passwords"`
	Notes         []Note          `json:"notes"`
	Categories    []string        `json:"categories"`
}

// NewVault returns an empty vault at the current schema version.
func NewVault() *Vault {
	return &Vault{
		SchemaVersion: CurrentSchemaVersion,
		Passwords:     []PasswordEntry{},
		Notes:         []Note{},
		Categories:    []string{},
	}
}

// Clone returns a deep copy.
func (v *Vault) Clone() *Vault {
	out := &Vault{
		SchemaVersion: v.SchemaVersion,
		Passwords:     make([]PasswordEntry, len(v.Passwords)),
		Notes:         slices.Clone(v.Notes),
		Categories:    slices.Clone(v.Categories),
	}
	for i, e := range v.Passwords {
		e.Tags = slices.Clone(e.Tags)
		out.Passwords[i] = e
	}
	if out.Notes == nil {
		out.Notes = []Note{}
	}
	if out.Categories == nil {
		out.Categories = []string{}
	}
	return out
}

// Entry returns a copy of the entry with the given ID.
func (v *Vault) Entry(id string) (PasswordEntry, error) {
	i := v.indexOf(id)
	if i < 0 {
		return PasswordEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return v.Passwords[i], nil
}

// AddEntry validates and appends an entry, assigning an ID and timestamps
// when they are missing.
func (v *Vault) AddEntry(e PasswordEntry) (PasswordEntry, error) {
	if err := e.Validate(); err != nil {
		return PasswordEntry{}, err
	}
	if e.ID == "" {
		e.ID = NewEntryID()
	}
	if v.indexOf(e.ID) >= 0 {
		return PasswordEntry{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidEntry, e.ID)
	}

	now := Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.ModifiedAt = now

	v.Passwords = append(v.Passwords, e)
	v.AddCategory(e.Category)
	return e, nil
}

// UpdateEntry replaces the entry with the same ID, keeping its creation time.
func (v *Vault) UpdateEntry(e PasswordEntry) (PasswordEntry, error) {
	i := v.indexOf(e.ID)
	if i < 0 {
		return PasswordEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, e.ID)
	}
	if err := e.Validate(); err != nil {
		return PasswordEntry{}, err
	}

	e.CreatedAt = v.Passwords[i].CreatedAt
	e.ModifiedAt = Now()
	v.Passwords[i] = e
	v.AddCategory(e.Category)
	return e, nil
}

// DeleteEntry removes the entry with the given ID.
func (v *Vault) DeleteEntry(id string) error {
	i := v.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	v.Passwords = slices.Delete(v.Passwords, i, i+1)
	return nil
}

// AddCategory appends name unless it is blank or already present.
// It reports whether the category list changed.
func (v *Vault) AddCategory(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || slices.Contains(v.Categories, name) {
		return false
	}
	v.Categories = append(v.Categories, name)
	return true
}

// RemoveCategory drops name from the category list. Entries keep their
// category value.
func (v *Vault) RemoveCategory(name string) bool {
	i := slices.Index(v.Categories, name)
	if i < 0 {
		return false
	}
	v.Categories = slices.Delete(v.Categories, i, i+1)
	return true
}

// AddNote appends a note, assigning an ID and timestamps.
func (v *Vault) AddNote(n Note) (Note, error) {
	if strings.TrimSpace(n.Title) == "" {
		return Note{}, fmt.Errorf("%w: note title is required", ErrInvalidEntry)
	}
	if n.ID == "" {
		n.ID = NewEntryID()
	}
	now := Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.ModifiedAt = now
	v.Notes = append(v.Notes, n)
	return n, nil
}

// DeleteNote removes the note with the given ID.
func (v *Vault) DeleteNote(id string) error {
	i := slices.IndexFunc(v.Notes, func(n Note) bool { return n.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	v.Notes = slices.Delete(v.Notes, i, i+1)
	return nil
}

// Search returns entries matching term case-insensitively.
func (v *Vault) Search(term string) []PasswordEntry {
	var out []PasswordEntry
	for _, e := range v.Passwords {
		if e.Matches(term) {
			out = append(out, e)
		}
	}
	return out
}

// ByCategory returns entries in the named category.
func (v *Vault) ByCategory(category string) []PasswordEntry {
	var out []PasswordEntry
	for _, e := range v.Passwords {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Favorites returns entries marked as favorite.
func (v *Vault) Favorites() []PasswordEntry {
	var out []PasswordEntry
	for _, e := range v.Passwords {
		if e.Favorite {
			out = append(out, e)
		}
	}
	return out
}

func (v *Vault) indexOf(id string) int {
	return slices.IndexFunc(v.Passwords, func(e PasswordEntry) bool { return e.ID == id })
}

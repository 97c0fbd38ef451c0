package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// timestampLayouts are accepted when decoding. The naive layouts cover vaults
// written by the desktop client, which stored local time without an offset;
// they are read in time.Local.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a point in time stored inside the vault document.
type Timestamp struct {
	time.Time
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

// MarshalJSON encodes the timestamp as RFC 3339 in UTC, or null when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 and naive ISO-8601 forms.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// Tags is an ordered list of labels on an entry.
type Tags []string

// UnmarshalJSON accepts either a JSON array or a comma-separated string.
func (t *Tags) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Tags{}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = normalizeTags(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("tags must be a list or string: %w", err)
	}
	*t = ParseTags(joined)
	return nil
}

// MarshalJSON encodes nil tags as an empty list.
func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// ParseTags splits a comma-separated tag string.
func ParseTags(s string) Tags {
	return normalizeTags(strings.Split(s, ","))
}

// String joins tags with ", ".
func (t Tags) String() string {
	return strings.Join(t, ", ")
}

func normalizeTags(in []string) Tags {
	out := make(Tags, 0, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// PasswordEntry is one credential record in the vault.
type PasswordEntry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Password        string    `json:"password"`
	Website         string    `json:"website"`
	Category        string    `json:"category"`
	Notes           string    `json:"notes"`
	Tags            Tags      `json:"tags"`
	Favorite        bool      `json:"favorite"`
	RequireReprompt bool      `json:"require_reprompt"`
	CreatedAt       Timestamp `json:"created_at"`
	ModifiedAt      Timestamp `json:"modified_at"`
}

// NewEntryID returns a fresh random entry identifier.
func NewEntryID() string {
	return uuid.NewString()
}

// Validate checks the fields a saved entry must carry.
func (e *PasswordEntry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	}
	if e.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidEntry)
	}
	return nil
}

// Matches reports whether term occurs, ignoring case, in any searchable field.
func (e *PasswordEntry) Matches(term string) bool {
	if term == "" {
		return true
	}
	fold := cases.Fold()
	term = fold.String(term)
	fields := []string{e.Title, e.Username, e.Email, e.Website, e.Category, e.Tags.String()}
	for _, f := range fields {
		if strings.Contains(fold.String(f), term) {
			return true
		}
	}
	return false
}

// Note is a free-form secure note.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  Timestamp `json:"created_at"`
	ModifiedAt Timestamp `json:"modified_at"`
}

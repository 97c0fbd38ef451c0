package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/zpass/internal/models"
)

func TestResolveID(t *testing.T) {
	notes := []models.Note{
		{ID: "ab12-0001", Title: "wifi"},
		{ID: "ab12-0002", Title: "alarm"},
		{ID: "cd34", Title: "lockers"},
		{ID: "cd34-ffff", Title: "safe"},
	}
	idOf := func(n models.Note) string { return n.ID }

	tests := []struct {
		name      string
		id        string
		wantTitle string
		wantErr   error
		errText   string
	}{
		{name: "full id", id: "ab12-0002", wantTitle: "alarm"},
		{name: "unique prefix", id: "ab12-0001", wantTitle: "wifi"},
		{name: "exact id beats longer prefix match", id: "cd34", wantTitle: "lockers"},
		{name: "ambiguous prefix", id: "ab12", errText: "matches 2 items"},
		{name: "no match", id: "zz", wantErr: models.ErrNoteNotFound},
		{name: "empty", id: "", wantErr: models.ErrNoteNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := resolveID(notes, idOf, tt.id, models.ErrNoteNotFound)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.ErrorContains(t, err, tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantTitle, n.Title)
			}
		})
	}
}

func TestResolveIDEntries(t *testing.T) {
	entries := []models.PasswordEntry{{ID: "1111-a", Title: "GitHub"}, {ID: "2222-b", Title: "Bank"}}

	e, err := resolveID(entries, func(e models.PasswordEntry) string { return e.ID }, "22", models.ErrEntryNotFound)
	require.NoError(t, err)
	assert.Equal(t, "Bank", e.Title)

	_, err = resolveID(entries, func(e models.PasswordEntry) string { return e.ID }, "3", models.ErrEntryNotFound)
	assert.ErrorIs(t, err, models.ErrEntryNotFound)
}

// Package codec converts between the in-memory vault and its canonical
// JSON document, the plaintext that gets encrypted.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/TheMichaelB/zpass/internal/models"
)

// legacySchemaVersion is assumed for documents without a schema_version,
// which is how the first desktop client wrote them.
const legacySchemaVersion = 1

// document mirrors models.Vault with pointer collections so missing keys can
// be told apart from empty ones.
type document struct {
	SchemaVersion *int                    `json:"schema_version"`
	Passwords     *[]models.PasswordEntry `json:"passwords"`
	Notes         *[]models.Note          `json:"notes"`
	Categories    *[]string               `json:"categories"`
}

// Serialize encodes the vault as UTF-8 JSON. Output is stable for equal input.
func Serialize(v *models.Vault) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil vault", models.ErrMalformedVault)
	}

	out := *v
	out.SchemaVersion = models.CurrentSchemaVersion
	if out.Passwords == nil {
		out.Passwords = []models.PasswordEntry{}
	}
	if out.Notes == nil {
		out.Notes = []models.Note{}
	}
	if out.Categories == nil {
		out.Categories = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("encode vault: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Deserialize decodes a vault document. Missing collections become empty;
// anything that is not a vault object yields models.ErrMalformedVault.
func Deserialize(data []byte) (*models.Vault, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: document is not a JSON object", models.ErrMalformedVault)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedVault, err)
	}

	version := legacySchemaVersion
	if doc.SchemaVersion != nil {
		version = *doc.SchemaVersion
	}
	if version < legacySchemaVersion || version > models.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", models.ErrMalformedVault, version)
	}

	v := models.NewVault()
	if doc.Passwords != nil {
		v.Passwords = *doc.Passwords
	}
	if doc.Notes != nil {
		v.Notes = *doc.Notes
	}
	if doc.Categories != nil {
		for _, c := range *doc.Categories {
			v.AddCategory(c)
		}
	}

	if err := normalize(v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalize fills IDs, rejects duplicates and makes sure every entry's
// category is listed.
func normalize(v *models.Vault) error {
	seen := make(map[string]struct{}, len(v.Passwords))
	for i := range v.Passwords {
		e := &v.Passwords[i]
		if e.ID == "" {
			e.ID = models.NewEntryID()
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: duplicate entry id %s", models.ErrMalformedVault, e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Tags == nil {
			e.Tags = models.Tags{}
		}
		v.AddCategory(e.Category)
	}

	for i := range v.Notes {
		if v.Notes[i].ID == "" {
			v.Notes[i].ID = models.NewEntryID()
		}
	}
	return nil
}

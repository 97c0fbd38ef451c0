package models

import (
	"encoding/base64"
	"fmt"
)

// EncryptedBlob is the opaque record exchanged with the remote store.
// The remote never sees anything but these bytes.
type EncryptedBlob struct {
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
}

// BlobRecord is the wire form of an EncryptedBlob. Nil fields mean the account
// has never uploaded a vault.
type BlobRecord struct {
	EncryptedData *string `json:"encrypted_data"`
	Salt          *string `json:"salt"`
}

// Record encodes the blob for transmission.
func (b *EncryptedBlob) Record() BlobRecord {
	data := base64.StdEncoding.EncodeToString(b.Ciphertext)
	salt := base64.StdEncoding.EncodeToString(b.Salt)
	return BlobRecord{EncryptedData: &data, Salt: &salt}
}

// Empty reports whether the record carries no vault.
func (r BlobRecord) Empty() bool {
	return isBlank(r.EncryptedData) && isBlank(r.Salt)
}

// Blob decodes the record. It returns nil, nil for an empty record.
func (r BlobRecord) Blob() (*EncryptedBlob, error) {
	if r.Empty() {
		return nil, nil
	}
	if isBlank(r.EncryptedData) || isBlank(r.Salt) {
		return nil, fmt.Errorf("%w: encrypted_data and salt must both be present", ErrMalformedBlob)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(*r.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: decode encrypted_data: %v", ErrMalformedBlob, err)
	}
	salt, err := base64.StdEncoding.DecodeString(*r.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: decode salt: %v", ErrMalformedBlob, err)
	}

	return &EncryptedBlob{Ciphertext: ciphertext, Salt: salt}, nil
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

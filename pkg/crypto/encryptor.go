package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"filippo.io/age"
)

var ErrMissingKey = errors.New("encryption key is required")

// Encryptor seals data to a single age X25519 identity. The API process and
// the worker must be configured with the same identity.
type Encryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor parses an age identity ("AGE-SECRET-KEY-1...").
func NewEncryptor(key string) (*Encryptor, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	identity, err := age.ParseX25519Identity(key)
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}

	return &Encryptor{
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// GenerateKey returns a fresh identity and its public recipient.
func GenerateKey() (identity string, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating identity: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}

// Seal JSON-encodes v straight into an age stream for the recipient.
func (e *Encryptor) Seal(v any) ([]byte, error) {
	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("opening age writer: %w", err)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return nil, fmt.Errorf("sealing payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing age stream: %w", err)
	}
	return sealed.Bytes(), nil
}

// Open decrypts data produced by Seal into v.
func (e *Encryptor) Open(data []byte, v any) error {
	r, err := age.Decrypt(bytes.NewReader(data), e.identity)
	if err != nil {
		return fmt.Errorf("opening sealed payload: %w", err)
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

// Recipient is the public half of the configured identity.
func (e *Encryptor) Recipient() string {
	return e.recipient.String()
}

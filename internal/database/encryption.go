package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"chitchat/internal/constants"

	"golang.org/x/crypto/pbkdf2"
)

// EncryptionSecretEnv names the variable holding the content encryption secret.
const EncryptionSecretEnv = "CHITCHAT_ENCRYPTION_SECRET"

// sealedPrefix marks stored content as ciphertext. Rows written before
// encryption was switched on lack it and are returned as stored.
const sealedPrefix = "enc:v1:"

var errSealedTooShort = errors.New("sealed content too short")

// contentCipher seals message bodies with AES-GCM, binding each ciphertext
// to its message id so a body copied onto another row fails to open.
type contentCipher struct {
	aead cipher.AEAD
}

// newContentCipher returns a pass-through cipher when enabled is false.
func newContentCipher(enabled bool) (*contentCipher, error) {
	if !enabled {
		return &contentCipher{}, nil
	}

	key, err := contentKey(os.Getenv(EncryptionSecretEnv))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cipher: %w", err)
	}
	return &contentCipher{aead: aead}, nil
}

func (c *contentCipher) Enabled() bool { return c.aead != nil }

func (c *contentCipher) Seal(messageID, content string) (string, error) {
	if c.aead == nil || content == "" {
		return content, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(content), []byte(messageID))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *contentCipher) Open(messageID, stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	if c.aead == nil {
		return "", fmt.Errorf("message %s is encrypted but %s is not configured", messageID, EncryptionSecretEnv)
	}

	data, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed content: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n+c.aead.Overhead() {
		return "", errSealedTooShort
	}
	plain, err := c.aead.Open(nil, data[:n], data[n:], []byte(messageID))
	if err != nil {
		return "", fmt.Errorf("failed to open sealed content: %w", err)
	}
	return string(plain), nil
}

func contentKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s is required when content encryption is enabled", EncryptionSecretEnv)
	}
	if len(secret) < constants.MinEncryptionSecretLen {
		return nil, fmt.Errorf("%s must be at least %d characters long", EncryptionSecretEnv, constants.MinEncryptionSecretLen)
	}
	return pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt), constants.Iterations, constants.KeySize, sha256.New), nil
}

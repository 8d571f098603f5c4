// Package cryptobox provides authenticated symmetric encryption for secrets
// at rest, such as scraping session cookies. Blobs carry the ciphertext,
// nonce and authentication tag as separate hex fields so they can be stored
// in a plain JSON column or config file.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const nonceSize = 12

// ErrTampered is returned when a blob fails authentication. A failed open
// never yields partial plaintext.
var ErrTampered = errors.New("cryptobox: authentication failed, blob is corrupted or tampered")

// Blob is an encrypted secret. All fields are hex-encoded.
type Blob struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	AuthTag    string `json:"authTag"`
}

// Box encrypts and decrypts with a process-wide key. The key is read-only
// after construction; a Box is safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from the master secret and returns a ready Box.
// The master secret may be any non-empty string; it is hashed so operators
// are not forced to manage raw 32-byte keys.
func New(masterKey string) (*Box, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, errors.New("cryptobox: master key is required")
	}

	key := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptobox: init cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: init gcm: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Seal encrypts the plaintext under a fresh random nonce.
func (b *Box) Seal(plaintext string) (*Blob, error) {
	if plaintext == "" {
		return nil, errors.New("cryptobox: plaintext must not be empty")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptobox: generate nonce: %w", err)
	}

	sealed := b.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// GCM appends the tag to the ciphertext; split it so the stored shape
	// matches the {ciphertext, nonce, authTag} contract.
	tagStart := len(sealed) - b.aead.Overhead()
	return &Blob{
		Ciphertext: hex.EncodeToString(sealed[:tagStart]),
		Nonce:      hex.EncodeToString(nonce),
		AuthTag:    hex.EncodeToString(sealed[tagStart:]),
	}, nil
}

// Open decrypts a blob. Any modification of the ciphertext, nonce or tag
// results in ErrTampered.
func (b *Box) Open(blob *Blob) (string, error) {
	if blob == nil {
		return "", errors.New("cryptobox: blob is required")
	}

	ciphertext, err := hex.DecodeString(blob.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("cryptobox: decode ciphertext: %w", err)
	}

	nonce, err := hex.DecodeString(blob.Nonce)
	if err != nil {
		return "", fmt.Errorf("cryptobox: decode nonce: %w", err)
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("cryptobox: nonce must be %d bytes, got %d", nonceSize, len(nonce))
	}

	tag, err := hex.DecodeString(blob.AuthTag)
	if err != nil {
		return "", fmt.Errorf("cryptobox: decode auth tag: %w", err)
	}

	plaintext, err := b.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrTampered
	}

	return string(plaintext), nil
}

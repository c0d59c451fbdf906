package encryptor

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// Algorithm is recorded on file records whose chunks are sealed.
	Algorithm = "chacha20poly1305-scrypt"

	SaltSize  = 16
	nonceSize = chacha20poly1305.NonceSize
	keySize   = chacha20poly1305.KeySize
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1

	// Overhead is the number of bytes sealing adds to a chunk.
	Overhead = nonceSize + chacha20poly1305.Overhead
)

var ErrEmptyPassword = errors.New("password cannot be empty")

// Sealer encrypts and decrypts individual chunks with a key bound to one
// file.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// chaCha20Poly1305Sealer implements Sealer using ChaCha20-Poly1305.
type chaCha20Poly1305Sealer struct {
	aead cipher.AEAD
}

// NewSalt returns a random salt for NewSealer.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// NewSealer derives a key from password and salt using scrypt. The
// derivation is slow on purpose, so build one Sealer per file rather than
// per chunk.
func NewSealer(password string, salt []byte) (Sealer, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD cipher: %w", err)
	}
	return &chaCha20Poly1305Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and prepends the random nonce.
func (s *chaCha20Poly1305Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (s *chaCha20Poly1305Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, errors.New("ciphertext too short")
	}
	nonce := sealed[:nonceSize]
	plaintext, err := s.aead.Open(nil, nonce, sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

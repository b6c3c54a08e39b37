package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// blobVersion is the version byte for the encrypted blob format.
	// This allows future format changes while maintaining backward compatibility.
	blobVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// keySize is the required key size for AES-256
	keySize = 32

	// kdfIterations is the PBKDF2 iteration count used by DeriveKey.
	kdfIterations = 100_000
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported blob version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("failed to decrypt blob")
)

// DeriveKey stretches a passphrase into an AES-256 key using PBKDF2-SHA256.
// The salt only needs to be unique per deployment, not secret.
func DeriveKey(passphrase, salt string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(salt), kdfIterations, keySize, sha256.New)
}

// Encryptor handles AES-256-GCM encryption/decryption of stored payloads.
// The encrypted format is: version(1) || nonce(12) || ciphertext(N)
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates a new encryptor with the given 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// Encrypt encrypts the given plaintext to a blob.
// Format: version(1) || nonce(12) || ciphertext
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, plaintext, nil)

	// Build blob: version || nonce || ciphertext
	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = blobVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return blob, nil
}

// Decrypt decrypts a blob produced by Encrypt.
func (e *Encryptor) Decrypt(blob []byte) ([]byte, error) {
	minSize := 1 + nonceSize + e.gcm.Overhead()
	if len(blob) < minSize {
		return nil, ErrInvalidBlobSize
	}

	version := blob[0]
	if version != blobVersion {
		return nil, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, version)
	}

	nonce := blob[1 : 1+nonceSize]
	ciphertext := blob[1+nonceSize:]

	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/medishare/recordvault/pkg/types"
)

// KeySize is the length of a per-report symmetric key (AES-256)
const KeySize = 32

// NewReportKey generates a fresh random 256-bit key for a single report.
// Keys are never derived from user input and never reused across reports.
func NewReportKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate report key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with the given key using AES-256-GCM.
// A fresh random nonce is generated per call and prepended to the
// ciphertext so decryption is self-contained given the blob and the key.
func Seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. It fails closed: a truncated blob
// or an authentication tag mismatch yields a crypto failure, never partial
// or corrupted plaintext.
func Open(blob, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, types.NewCryptoFailureError(types.ErrCodeDecryptionFailed, "ciphertext too short", nil)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, types.NewCryptoFailureError(types.ErrCodeDecryptionFailed, "decryption failed", err)
	}

	return plaintext, nil
}

// LocatorDigest computes the report's public content hash: a SHA-256 digest
// of the storage locator string. The digest is taken over the locator, never
// the plaintext or the key, so identical plaintext uploaded twice yields
// distinct hashes.
func LocatorDigest(locator string) string {
	hash := sha256.Sum256([]byte(locator))
	return fmt.Sprintf("%x", hash)
}

// newGCM builds an AES-GCM AEAD for the given key
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, types.NewCryptoFailureError(types.ErrCodeDecryptionFailed, fmt.Sprintf("invalid key length: %d", len(key)), nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

package crypto

import "crypto/sha256"

// KeyCipher seals per-report keys at rest with the service master key.
// The custody store column holds only sealed key material; the raw key
// exists in memory for the duration of an upload or view.
type KeyCipher struct {
	key []byte
}

// NewKeyCipher derives a fixed AES-256 key from the configured master secret
func NewKeyCipher(masterKey string) *KeyCipher {
	derived := sha256.Sum256([]byte(masterKey))
	return &KeyCipher{key: derived[:]}
}

// SealKey encrypts a report key for storage
func (kc *KeyCipher) SealKey(reportKey []byte) ([]byte, error) {
	return Seal(reportKey, kc.key)
}

// OpenKey decrypts a stored report key
func (kc *KeyCipher) OpenKey(sealed []byte) ([]byte, error) {
	return Open(sealed, kc.key)
}

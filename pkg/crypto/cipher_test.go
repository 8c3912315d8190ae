package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medishare/recordvault/pkg/types"
)

func TestNewReportKey(t *testing.T) {
	key1, err := NewReportKey()
	assert.NoError(t, err)
	assert.Len(t, key1, KeySize)

	key2, err := NewReportKey()
	assert.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := NewReportKey()
	assert.NoError(t, err)

	plaintext := []byte("blood panel results 2026-08-14")

	blob, err := Seal(plaintext, key)
	assert.NoError(t, err)
	assert.NotEqual(t, plaintext, blob)

	recovered, err := Open(blob, key)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestSeal_UniqueNonces(t *testing.T) {
	key, _ := NewReportKey()
	plaintext := []byte("same content")

	blob1, err := Seal(plaintext, key)
	assert.NoError(t, err)
	blob2, err := Seal(plaintext, key)
	assert.NoError(t, err)

	assert.NotEqual(t, blob1, blob2)
}

func TestOpen_WrongKey(t *testing.T) {
	key1, _ := NewReportKey()
	key2, _ := NewReportKey()

	blob, err := Seal([]byte("confidential"), key1)
	assert.NoError(t, err)

	recovered, err := Open(blob, key2)
	assert.Error(t, err)
	assert.Nil(t, recovered)
	assert.Equal(t, types.ErrorKindCryptoFailure, types.KindOf(err))
}

func TestOpen_TamperedCiphertext(t *testing.T) {
	key, _ := NewReportKey()

	blob, err := Seal([]byte("confidential"), key)
	assert.NoError(t, err)

	blob[len(blob)-1] ^= 0xFF

	recovered, err := Open(blob, key)
	assert.Error(t, err)
	assert.Nil(t, recovered)
	assert.Equal(t, types.ErrorKindCryptoFailure, types.KindOf(err))
}

func TestOpen_TruncatedBlob(t *testing.T) {
	key, _ := NewReportKey()

	recovered, err := Open([]byte{0x01, 0x02, 0x03}, key)
	assert.Error(t, err)
	assert.Nil(t, recovered)
	assert.Equal(t, types.ErrorKindCryptoFailure, types.KindOf(err))
}

func TestLocatorDigest(t *testing.T) {
	digest := LocatorDigest("ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")

	assert.Len(t, digest, 64)
	assert.Equal(t, digest, LocatorDigest("ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	assert.NotEqual(t, digest, LocatorDigest("ipfs://QmOther"))
}

func TestKeyCipher_RoundTrip(t *testing.T) {
	kc := NewKeyCipher("master-secret")

	reportKey, err := NewReportKey()
	assert.NoError(t, err)

	sealed, err := kc.SealKey(reportKey)
	assert.NoError(t, err)
	assert.NotEqual(t, reportKey, sealed)

	opened, err := kc.OpenKey(sealed)
	assert.NoError(t, err)
	assert.Equal(t, reportKey, opened)
}

func TestKeyCipher_DifferentMasterKeys(t *testing.T) {
	reportKey, _ := NewReportKey()

	sealed, err := NewKeyCipher("master-a").SealKey(reportKey)
	assert.NoError(t, err)

	opened, err := NewKeyCipher("master-b").OpenKey(sealed)
	assert.Error(t, err)
	assert.Nil(t, opened)
}

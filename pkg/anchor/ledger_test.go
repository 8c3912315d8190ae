package anchor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medishare/recordvault/pkg/logger"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger"), logger.New("test", "error"))
	assert.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_AnchorAndLookup(t *testing.T) {
	l := openTestLedger(t)

	receipt, err := l.Anchor(context.Background(), "patient-1", "abc123")
	assert.NoError(t, err)
	assert.NotEmpty(t, receipt.TxID)
	assert.Equal(t, "patient-1", receipt.OwnerID)
	assert.Equal(t, "abc123", receipt.ContentHash)
	assert.False(t, receipt.AnchoredAt.IsZero())

	found, err := l.Lookup("abc123")
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, receipt.TxID, found.TxID)
	assert.Equal(t, "patient-1", found.OwnerID)
}

func TestLedger_LookupUnknownHash(t *testing.T) {
	l := openTestLedger(t)

	found, err := l.Lookup("never-anchored")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestLedger_ChainVerifies(t *testing.T) {
	l := openTestLedger(t)

	for i := 0; i < 5; i++ {
		_, err := l.Anchor(context.Background(), "patient-1", fmt.Sprintf("hash-%d", i))
		assert.NoError(t, err)
	}

	assert.NoError(t, l.Verify())
}

func TestLedger_DistinctTxIDs(t *testing.T) {
	l := openTestLedger(t)

	r1, err := l.Anchor(context.Background(), "patient-1", "hash-a")
	assert.NoError(t, err)
	r2, err := l.Anchor(context.Background(), "patient-2", "hash-b")
	assert.NoError(t, err)

	assert.NotEqual(t, r1.TxID, r2.TxID)
}

func TestLedger_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	log := logger.New("test", "error")

	l, err := OpenLedger(dir, log)
	assert.NoError(t, err)

	receipt, err := l.Anchor(context.Background(), "patient-1", "persistent-hash")
	assert.NoError(t, err)
	assert.NoError(t, l.Close())

	reopened, err := OpenLedger(dir, log)
	assert.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.Lookup("persistent-hash")
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, receipt.TxID, found.TxID)
	assert.NoError(t, reopened.Verify())
}

func TestLedger_CanceledContext(t *testing.T) {
	l := openTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receipt, err := l.Anchor(ctx, "patient-1", "hash")
	assert.Error(t, err)
	assert.Nil(t, receipt)
}

package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// Ledger is an embedded append-only anchor chain backed by LevelDB.
// Each anchored hash becomes a block linked to its predecessor by header
// hash, so a committed entry cannot be altered without breaking every
// block after it. Intended for single-node deployments where no external
// chain gateway is available.
type Ledger struct {
	mu     sync.Mutex
	db     *leveldb.DB
	logger *logger.Logger
}

// ledgerBlock is one committed anchor entry
type ledgerBlock struct {
	Index       int    `json:"index"`
	PrevHash    string `json:"prev_hash"`
	OwnerID     string `json:"owner_id"`
	ContentHash string `json:"content_hash"`
	Timestamp   string `json:"timestamp"`
	BlockHash   string `json:"block_hash"`
}

// OpenLedger opens (or creates) the ledger at the given path
func OpenLedger(path string, log *logger.Logger) (*Ledger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open anchor ledger: %w", err)
	}

	l := &Ledger{
		db:     db,
		logger: log.WithComponent("anchor-ledger"),
	}
	l.logger.Info("Anchor ledger opened", "path", path)
	return l, nil
}

// Close closes the underlying database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Anchor appends a new block committing the content hash under the owner's
// identity and returns its receipt
func (l *Ledger) Anchor(ctx context.Context, ownerID, contentHash string) (*types.AnchorReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "anchor canceled", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	index, prevHash, err := l.head()
	if err != nil {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "anchor ledger unreadable", err)
	}

	now := time.Now().UTC()
	blk := ledgerBlock{
		Index:       index + 1,
		PrevHash:    prevHash,
		OwnerID:     ownerID,
		ContentHash: contentHash,
		Timestamp:   now.Format(time.RFC3339Nano),
	}
	blk.BlockHash = computeBlockHash(blk)

	if err := l.saveBlock(blk); err != nil {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "anchor ledger write failed", err)
	}

	l.logger.AnchorTransaction(ownerID, contentHash, blk.BlockHash, true)

	return &types.AnchorReceipt{
		TxID:        blk.BlockHash,
		OwnerID:     ownerID,
		ContentHash: contentHash,
		AnchoredAt:  now,
	}, nil
}

// Lookup returns the receipt for a previously anchored content hash,
// or nil if the hash was never committed
func (l *Ledger) Lookup(contentHash string) (*types.AnchorReceipt, error) {
	data, err := l.db.Get([]byte("anchor_"+contentHash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "anchor ledger unreadable", err)
	}

	var blk ledgerBlock
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, types.NewAnchorUnavailableError(types.ErrCodeAnchorFailure, "corrupt ledger block", err)
	}

	anchoredAt, _ := time.Parse(time.RFC3339Nano, blk.Timestamp)
	return &types.AnchorReceipt{
		TxID:        blk.BlockHash,
		OwnerID:     blk.OwnerID,
		ContentHash: blk.ContentHash,
		AnchoredAt:  anchoredAt,
	}, nil
}

// Verify walks the chain from genesis and checks every link
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	height, _, err := l.head()
	if err != nil {
		return err
	}

	prevHash := genesisHash
	for i := 1; i <= height; i++ {
		blk, err := l.blockByIndex(i)
		if err != nil {
			return fmt.Errorf("missing block %d: %w", i, err)
		}
		if blk.PrevHash != prevHash {
			return fmt.Errorf("broken chain at block %d", i)
		}
		if computeBlockHash(blk) != blk.BlockHash {
			return fmt.Errorf("tampered block %d", i)
		}
		prevHash = blk.BlockHash
	}
	return nil
}

var genesisHash = strings.Repeat("0", 64)

// head returns the current chain height and the hash of the latest block
func (l *Ledger) head() (int, string, error) {
	data, err := l.db.Get([]byte("height_latest"), nil)
	if err == leveldb.ErrNotFound {
		return 0, genesisHash, nil
	}
	if err != nil {
		return 0, "", err
	}

	height, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, "", fmt.Errorf("corrupt height marker: %w", err)
	}
	if height == 0 {
		return 0, genesisHash, nil
	}

	blk, err := l.blockByIndex(height)
	if err != nil {
		return 0, "", err
	}
	return height, blk.BlockHash, nil
}

// saveBlock persists the block under its index, hash and content hash keys
// and advances the height marker
func (l *Ledger) saveBlock(blk ledgerBlock) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return err
	}

	if err := l.db.Put([]byte(fmt.Sprintf("block_%d", blk.Index)), data, nil); err != nil {
		return err
	}
	if err := l.db.Put([]byte("hash_"+blk.BlockHash), data, nil); err != nil {
		return err
	}
	if err := l.db.Put([]byte("anchor_"+blk.ContentHash), data, nil); err != nil {
		return err
	}
	return l.db.Put([]byte("height_latest"), []byte(strconv.Itoa(blk.Index)), nil)
}

func (l *Ledger) blockByIndex(index int) (ledgerBlock, error) {
	data, err := l.db.Get([]byte(fmt.Sprintf("block_%d", index)), nil)
	if err != nil {
		return ledgerBlock{}, err
	}
	var blk ledgerBlock
	if err := json.Unmarshal(data, &blk); err != nil {
		return ledgerBlock{}, err
	}
	return blk, nil
}

// computeBlockHash hashes the block header fields, excluding BlockHash itself
func computeBlockHash(blk ledgerBlock) string {
	header := fmt.Sprintf("%d|%s|%s|%s|%s", blk.Index, blk.PrevHash, blk.OwnerID, blk.ContentHash, blk.Timestamp)
	sum := sha256.Sum256([]byte(header))
	return fmt.Sprintf("%x", sum)
}

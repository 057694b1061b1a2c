//go:build integration

package test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainkit/forkdb/internal/forkdb"
)

// FixtureBlock is a deterministic test header, lighter than a full
// ethereum block: the fork database only ever looks at id/previous_id/num.
type FixtureBlock struct {
	Height     uint64
	Hash       []byte
	ParentHash []byte
	Miner      []byte
	Timestamp  int64
}

// GenerateTestBlocks generates a chain of N deterministic test blocks.
// Returns blocks in ascending order (height startHeight, startHeight+1, ...).
func GenerateTestBlocks(t *testing.T, startHeight uint64, count int, _ int) []*FixtureBlock {
	t.Helper()

	blocks := make([]*FixtureBlock, count)

	var parentHash []byte
	if startHeight == 0 {
		parentHash = make([]byte, 32)
	} else {
		parentHash = generateDeterministicHash(startHeight - 1)
	}

	for i := 0; i < count; i++ {
		height := startHeight + uint64(i)

		block := &FixtureBlock{
			Height:     height,
			Hash:       generateDeterministicHash(height),
			ParentHash: parentHash,
			Miner:      generateDeterministicAddress(height),
			Timestamp:  time.Now().Unix() - int64(count-i)*12, // 12 sec block time
		}

		blocks[i] = block
		parentHash = block.Hash
	}

	return blocks
}

// generateDeterministicHash generates a 32-byte hash from a seed.
func generateDeterministicHash(seed uint64) []byte {
	hash := make([]byte, 32)
	for i := 0; i < 32; i++ {
		hash[i] = byte((seed >> (i % 8 * 8)) & 0xFF)
	}
	for i := 0; i < 32; i++ {
		hash[i] ^= byte(i * 7)
	}
	return hash
}

// generateDeterministicAddress generates a 20-byte address from a seed.
func generateDeterministicAddress(seed uint64) []byte {
	addr := make([]byte, 20)
	for i := 0; i < 20; i++ {
		addr[i] = byte((seed >> (i % 8 * 8)) & 0xFF)
	}
	for i := 0; i < 20; i++ {
		addr[i] ^= byte(i * 11)
	}
	return addr
}

// ToEthBlock converts a FixtureBlock into the header-shaped forkdb.Block the
// database accepts directly from PushBlock.
func (f *FixtureBlock) ToEthBlock() forkdb.EthBlock {
	return forkdb.EthBlock{
		Header: &types.Header{
			ParentHash: common.BytesToHash(f.ParentHash),
			Coinbase:   common.BytesToAddress(f.Miner),
			Number:     big.NewInt(int64(f.Height)),
			Time:       uint64(f.Timestamp),
		},
	}
}

// CreateOrphanedChain creates a fork chain diverging from forkPoint with
// different hashes than the canonical chain at the same heights — useful
// for exercising orphan-staging and promotion.
func CreateOrphanedChain(t *testing.T, forkPoint uint64, depth int) []*FixtureBlock {
	t.Helper()

	orphanedBlocks := make([]*FixtureBlock, depth)

	parentHash := generateDeterministicHash(forkPoint)
	marker := []byte("ORPHAN")

	for i := 0; i < depth; i++ {
		height := forkPoint + uint64(i) + 1

		hash := generateDeterministicHash(height)
		copy(hash[len(hash)-len(marker):], marker)

		block := &FixtureBlock{
			Height:     height,
			Hash:       hash,
			ParentHash: parentHash,
			Miner:      generateDeterministicAddress(height + 999999),
			Timestamp:  time.Now().Unix() - int64(depth-i)*12,
		}

		orphanedBlocks[i] = block
		parentHash = block.Hash
	}

	return orphanedBlocks
}

// CreateTestChain creates a simple test chain starting from height 1.
func CreateTestChain(t *testing.T, blockCount int) []*FixtureBlock {
	t.Helper()

	blocks := GenerateTestBlocks(t, 1, blockCount, 0)
	t.Logf("Created test chain: %d blocks", blockCount)
	return blocks
}

package ingest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainkit/forkdb/internal/forkdb"
)

// errNotFound is the sentinel returned for a height the mock chain doesn't
// have yet, mirroring what ethclient.HeaderByNumber returns for an
// unproduced block.
var errNotFound = ethereum.NotFound

// buildChain returns count real go-ethereum headers, each one's ParentHash
// pointing at the real (computed) hash of its predecessor, starting at
// height 1 so genesis admission through PushBlock's empty-database path
// (see internal/forkdb) never has to special-case height 0.
func buildChain(count int) []forkdb.EthBlock {
	blocks := make([]forkdb.EthBlock, count)
	var parent common.Hash

	for i := 0; i < count; i++ {
		h := &types.Header{
			ParentHash: parent,
			Number:     big.NewInt(int64(i + 1)),
			GasLimit:   30_000_000,
			Time:       uint64(i + 1),
		}
		blocks[i] = forkdb.EthBlock{Header: h}
		parent = h.Hash()
	}
	return blocks
}

// mockFetcher serves a fixed chain by height and can be made to fail on
// specific heights (it never delays), mirroring internal/test.MockFailingRPCClient /
// MockSlowRPCClient but scoped to this package so ingest tests don't need
// the //go:build integration tag those carry.
type mockFetcher struct {
	mu       sync.Mutex
	byHeight map[uint64]forkdb.EthBlock
	latest   uint64
	failAt   map[uint64]error
	calls    map[uint64]int
}

func newMockFetcher(chain []forkdb.EthBlock) *mockFetcher {
	m := &mockFetcher{
		byHeight: make(map[uint64]forkdb.EthBlock),
		failAt:   make(map[uint64]error),
		calls:    make(map[uint64]int),
	}
	for _, b := range chain {
		m.byHeight[b.BlockNum()] = b
		if b.BlockNum() > m.latest {
			m.latest = b.BlockNum()
		}
	}
	return m
}

func (m *mockFetcher) HeaderByNumber(ctx context.Context, height uint64) (forkdb.EthBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[height]++

	if err, ok := m.failAt[height]; ok {
		return forkdb.EthBlock{}, err
	}
	b, ok := m.byHeight[height]
	if !ok {
		return forkdb.EthBlock{}, errNotFound
	}
	return b, nil
}

func (m *mockFetcher) LatestHeaderNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, nil
}

func (m *mockFetcher) callCount(height uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[height]
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/forkdb/internal/forkdb"
)

func TestNewBackfillCoordinator_NilFetcher(t *testing.T) {
	db := forkdb.New(forkdb.DefaultConfig())
	_, err := NewBackfillCoordinator(nil, db, &sync.Mutex{}, &BackfillConfig{Workers: 1, StartHeight: 0, EndHeight: 9})
	assert.Error(t, err)
}

func TestNewBackfillCoordinator_NilDB(t *testing.T) {
	fetcher := newMockFetcher(buildChain(10))
	_, err := NewBackfillCoordinator(fetcher, nil, &sync.Mutex{}, &BackfillConfig{Workers: 1, StartHeight: 0, EndHeight: 9})
	assert.Error(t, err)
}

func TestNewBackfillCoordinator_InvalidConfig(t *testing.T) {
	db := forkdb.New(forkdb.DefaultConfig())
	fetcher := newMockFetcher(buildChain(10))
	_, err := NewBackfillCoordinator(fetcher, db, &sync.Mutex{}, &BackfillConfig{Workers: 0, StartHeight: 0, EndHeight: 9})
	assert.Error(t, err)
}

func TestBackfillCoordinator_HappyPath(t *testing.T) {
	chain := buildChain(20)
	fetcher := newMockFetcher(chain)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	bc, err := NewBackfillCoordinator(fetcher, db, mu, &BackfillConfig{Workers: 4, StartHeight: 1, EndHeight: 20})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, bc.Backfill(ctx, 1, 20))

	mu.Lock()
	head := db.Head()
	linkedLen := db.Len()
	mu.Unlock()

	assert.Equal(t, uint64(20), head.Num)
	assert.Equal(t, 20, linkedLen)
	assert.Equal(t, int64(20), bc.blocksInserted)
}

func TestBackfillCoordinator_InsertsInHeightOrderDespiteWorkerFanout(t *testing.T) {
	chain := buildChain(50)
	fetcher := newMockFetcher(chain)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	bc, err := NewBackfillCoordinator(fetcher, db, mu, &BackfillConfig{Workers: 8, StartHeight: 1, EndHeight: 50})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, bc.Backfill(ctx, 1, 50))

	// If the collector ever fed PushBlock out of height order, blocks whose
	// parent hadn't landed yet would be staged as orphans instead of linked,
	// and db.Len() would undercount against UnlinkedLen() picking up the
	// slack.
	mu.Lock()
	linkedLen := db.Len()
	unlinkedLen := db.UnlinkedLen()
	mu.Unlock()

	assert.Equal(t, 50, linkedLen)
	assert.Equal(t, 0, unlinkedLen)
}

func TestBackfillCoordinator_FetchErrorHaltsBackfill(t *testing.T) {
	chain := buildChain(10)
	fetcher := newMockFetcher(chain)
	fetcher.failAt[5] = errors.New("rpc: connection reset")

	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	bc, err := NewBackfillCoordinator(fetcher, db, mu, &BackfillConfig{Workers: 2, StartHeight: 1, EndHeight: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = bc.Backfill(ctx, 1, 10)
	assert.Error(t, err)
}

func TestBackfillCoordinator_Stats(t *testing.T) {
	chain := buildChain(10)
	fetcher := newMockFetcher(chain)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	bc, err := NewBackfillCoordinator(fetcher, db, mu, &BackfillConfig{Workers: 2, StartHeight: 1, EndHeight: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, bc.Backfill(ctx, 1, 10))

	stats := bc.Stats()
	assert.Equal(t, int64(10), stats["blocks_fetched"])
	assert.Equal(t, int64(10), stats["blocks_inserted"])
	assert.Equal(t, 2, stats["workers"])
}

func TestBackfillCoordinator_ContextCancellation(t *testing.T) {
	chain := buildChain(100)
	fetcher := newMockFetcher(chain)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	bc, err := NewBackfillCoordinator(fetcher, db, mu, &BackfillConfig{Workers: 1, StartHeight: 1, EndHeight: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = bc.Backfill(ctx, 1, 100)
	assert.Error(t, err)
}

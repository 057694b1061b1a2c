package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/forkdb/internal/forkdb"
)

type mockBroadcaster struct {
	mu      sync.Mutex
	heads   []HeadEvent
	orphans []HeadEvent
}

func (b *mockBroadcaster) BroadcastHeadAdvance(head HeadEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heads = append(b.heads, head)
}

func (b *mockBroadcaster) BroadcastOrphanStaged(orphan HeadEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orphans = append(b.orphans, orphan)
}

func (b *mockBroadcaster) headCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heads)
}

func (b *mockBroadcaster) orphanCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orphans)
}

func TestNewLiveTailCoordinator_NilFetcher(t *testing.T) {
	db := forkdb.New(forkdb.DefaultConfig())
	_, err := NewLiveTailCoordinator(nil, db, &sync.Mutex{}, nil, &LiveTailConfig{PollInterval: time.Second})
	assert.Error(t, err)
}

func TestLiveTailCoordinator_TickAdvancesHead(t *testing.T) {
	chain := buildChain(3)
	fetcher := newMockFetcher(chain[:1]) // only height 1 is "produced" so far
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, nil, &LiveTailConfig{PollInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, ltc.tick(context.Background()))

	mu.Lock()
	head := db.Head()
	mu.Unlock()
	assert.Equal(t, uint64(1), head.Num)
}

func TestLiveTailCoordinator_TickSkipsUnproducedBlock(t *testing.T) {
	fetcher := newMockFetcher(nil)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, nil, &LiveTailConfig{PollInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, ltc.tick(context.Background()))

	mu.Lock()
	empty := db.Head().Num == 0 && !db.IsKnownBlock(db.Head().ID)
	mu.Unlock()
	assert.True(t, empty)
}

func TestLiveTailCoordinator_BroadcastsHeadAdvance(t *testing.T) {
	chain := buildChain(2)
	fetcher := newMockFetcher(chain[:1])
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}
	hub := &mockBroadcaster{}

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, hub, &LiveTailConfig{PollInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, ltc.tick(context.Background()))

	assert.Equal(t, 1, hub.headCount())
	assert.Equal(t, 0, hub.orphanCount())
}

func TestLiveTailCoordinator_BroadcastsOrphanStaged(t *testing.T) {
	chain := buildChain(3)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}
	hub := &mockBroadcaster{}

	// Seed the database with block 1 as genesis so the head sits at 1, then
	// hand the live-tail fetcher block 3 (whose parent is block 2, not yet
	// known) — it should be staged as an orphan, not advance the head.
	mu.Lock()
	_, err := db.PushBlock(chain[0])
	mu.Unlock()
	require.NoError(t, err)

	fetcher := newMockFetcher([]forkdb.EthBlock{chain[2]})
	fetcher.byHeight[2] = chain[2] // serve the orphan at the next-expected height

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, hub, &LiveTailConfig{PollInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, ltc.tick(context.Background()))

	assert.Equal(t, 0, hub.headCount())
	assert.Equal(t, 1, hub.orphanCount())

	mu.Lock()
	head := db.Head()
	mu.Unlock()
	assert.Equal(t, uint64(1), head.Num)
}

// TestLiveTailCoordinator_LinkedBlockPromotesPastItself covers the case
// newHead.ID == block.ID() can't distinguish: the fetched block links
// successfully, but orphan promotion chains through it and the resulting
// head is a different, already-staged descendant. The old
// newHead.ID != block.ID() heuristic misreported this as an orphan-staged
// event for a block that was, in fact, linked.
func TestLiveTailCoordinator_LinkedBlockPromotesPastItself(t *testing.T) {
	chain := buildChain(3)
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}
	hub := &mockBroadcaster{}

	mu.Lock()
	_, err := db.PushBlock(chain[0]) // genesis at height 1, becomes head
	require.NoError(t, err)
	_, err = db.PushBlock(chain[2]) // height 3, parent (height 2) unknown: staged as orphan
	require.NoError(t, err)
	require.True(t, db.IsOrphan(chain[2].ID()))
	mu.Unlock()

	// The live-tail coordinator always fetches head.Num+1, i.e. height 2 —
	// pushing it links the staged height-3 orphan right behind it, so head
	// ends up on chain[2], not on the block this tick actually fetched.
	fetcher := newMockFetcher([]forkdb.EthBlock{chain[1]})

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, hub, &LiveTailConfig{PollInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, ltc.tick(context.Background()))

	mu.Lock()
	head := db.Head()
	mu.Unlock()
	assert.Equal(t, chain[2].ID(), head.ID, "promoted orphan should become head")

	assert.Equal(t, 1, hub.headCount(), "the linked block should report a head advance")
	assert.Equal(t, 0, hub.orphanCount(), "the linked block must not be reported as an orphan")
}

func TestLiveTailCoordinator_StartRespectsContextCancellation(t *testing.T) {
	fetcher := newMockFetcher(buildChain(1))
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, nil, &LiveTailConfig{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = ltc.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLiveTailCoordinator_Stats(t *testing.T) {
	fetcher := newMockFetcher(buildChain(1))
	db := forkdb.New(forkdb.DefaultConfig())
	mu := &sync.Mutex{}

	ltc, err := NewLiveTailCoordinator(fetcher, db, mu, nil, &LiveTailConfig{PollInterval: time.Second})
	require.NoError(t, err)

	require.NoError(t, ltc.tick(context.Background()))

	stats := ltc.Stats()
	assert.Equal(t, int64(1), stats["blocks_processed"])
}

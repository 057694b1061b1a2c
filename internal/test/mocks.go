//go:build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chainkit/forkdb/internal/forkdb"
)

// MockRPCClient is a mock Ethereum RPC client for testing. Provides
// deterministic responses and failure injection.
type MockRPCClient struct {
	t              *testing.T
	mu             sync.RWMutex
	blocks         map[uint64]forkdb.EthBlock
	failures       map[uint64]int // Height -> number of times to fail
	permanentError *uint64        // Height that should always fail
	delay          time.Duration  // Simulated network delay
	callCount      int            // Track number of calls
	failuresLeft   int            // Global failure counter
}

// NewMockRPCClient creates a new mock RPC client with preloaded blocks.
func NewMockRPCClient(t *testing.T, fixtures []*FixtureBlock) *MockRPCClient {
	t.Helper()

	client := &MockRPCClient{
		t:        t,
		blocks:   make(map[uint64]forkdb.EthBlock),
		failures: make(map[uint64]int),
	}

	for _, fixture := range fixtures {
		client.blocks[fixture.Height] = fixture.ToEthBlock()
	}

	t.Logf("MockRPCClient initialized with %d blocks", len(client.blocks))

	return client
}

// HeaderByNumber mocks rpc.Client.HeaderByNumber. Supports failure injection
// and delay simulation.
func (m *MockRPCClient) HeaderByNumber(ctx context.Context, height uint64) (forkdb.EthBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	select {
	case <-ctx.Done():
		return forkdb.EthBlock{}, ctx.Err()
	default:
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if m.failuresLeft > 0 {
		m.failuresLeft--
		m.t.Logf("MockRPCClient: injecting transient failure (remaining: %d)", m.failuresLeft)
		return forkdb.EthBlock{}, errors.New("network timeout")
	}

	if m.permanentError != nil && *m.permanentError == height {
		m.t.Logf("MockRPCClient: permanent error for height %d", height)
		return forkdb.EthBlock{}, errors.New("invalid block height")
	}

	if failCount, ok := m.failures[height]; ok && failCount > 0 {
		m.failures[height]--
		m.t.Logf("MockRPCClient: injecting failure for height %d (remaining: %d)", height, m.failures[height])
		return forkdb.EthBlock{}, errors.New("temporary failure")
	}

	block, ok := m.blocks[height]
	if !ok {
		return forkdb.EthBlock{}, fmt.Errorf("block not found: %d", height)
	}

	return block, nil
}

// SetFailures configures the client to fail N times for a specific height.
func (m *MockRPCClient) SetFailures(height uint64, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[height] = count
	m.t.Logf("MockRPCClient: set %d failures for height %d", count, height)
}

// SetGlobalFailures configures the client to fail the next N calls globally.
func (m *MockRPCClient) SetGlobalFailures(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failuresLeft = count
	m.t.Logf("MockRPCClient: set %d global failures", count)
}

// SetPermanentError configures a height that always fails.
func (m *MockRPCClient) SetPermanentError(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.permanentError = &height
	m.t.Logf("MockRPCClient: set permanent error for height %d", height)
}

// SetDelay configures simulated network delay.
func (m *MockRPCClient) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delay = delay
	m.t.Logf("MockRPCClient: set delay to %v", delay)
}

// AddBlock adds a new block to the mock client.
func (m *MockRPCClient) AddBlock(fixture *FixtureBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[fixture.Height] = fixture.ToEthBlock()
	m.t.Logf("MockRPCClient: added block %d", fixture.Height)
}

// AddBlocks adds multiple blocks to the mock client.
func (m *MockRPCClient) AddBlocks(fixtures []*FixtureBlock) {
	for _, fixture := range fixtures {
		m.AddBlock(fixture)
	}
}

// GetCallCount returns the number of times HeaderByNumber was called.
func (m *MockRPCClient) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCount
}

// ResetCallCount resets the call counter.
func (m *MockRPCClient) ResetCallCount() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount = 0
}

// HasBlock checks if a block exists in the mock client.
func (m *MockRPCClient) HasBlock(height uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blocks[height]
	return ok
}

// GetBlockCount returns the number of blocks in the mock client.
func (m *MockRPCClient) GetBlockCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blocks)
}

// Clear removes all blocks from the mock client.
func (m *MockRPCClient) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make(map[uint64]forkdb.EthBlock)
	m.failures = make(map[uint64]int)
	m.permanentError = nil
	m.delay = 0
	m.callCount = 0
	m.failuresLeft = 0

	m.t.Logf("MockRPCClient: cleared all data")
}

// MockFailingRPCClient always fails (for testing error paths).
type MockFailingRPCClient struct {
	t       *testing.T
	errType string
}

// NewMockFailingRPCClient creates a client that always fails.
func NewMockFailingRPCClient(t *testing.T, errType string) *MockFailingRPCClient {
	return &MockFailingRPCClient{
		t:       t,
		errType: errType,
	}
}

// HeaderByNumber always returns an error.
func (m *MockFailingRPCClient) HeaderByNumber(ctx context.Context, height uint64) (forkdb.EthBlock, error) {
	switch m.errType {
	case "network":
		return forkdb.EthBlock{}, errors.New("network timeout")
	case "invalid":
		return forkdb.EthBlock{}, errors.New("invalid block height")
	case "context":
		return forkdb.EthBlock{}, context.Canceled
	default:
		return forkdb.EthBlock{}, errors.New("unknown error")
	}
}

// MockSlowRPCClient simulates slow network responses.
type MockSlowRPCClient struct {
	t        *testing.T
	client   *MockRPCClient
	minDelay time.Duration
	maxDelay time.Duration
}

// NewMockSlowRPCClient creates a client with delays bounded by [minDelay,
// maxDelay].
func NewMockSlowRPCClient(t *testing.T, fixtures []*FixtureBlock, minDelay, maxDelay time.Duration) *MockSlowRPCClient {
	return &MockSlowRPCClient{
		t:        t,
		client:   NewMockRPCClient(t, fixtures),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// HeaderByNumber returns blocks with a delay derived from height.
func (m *MockSlowRPCClient) HeaderByNumber(ctx context.Context, height uint64) (forkdb.EthBlock, error) {
	delay := m.minDelay + time.Duration(height%10)*((m.maxDelay-m.minDelay)/10)

	select {
	case <-ctx.Done():
		return forkdb.EthBlock{}, ctx.Err()
	case <-time.After(delay):
		return m.client.HeaderByNumber(ctx, height)
	}
}

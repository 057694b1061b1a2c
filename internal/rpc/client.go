package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/chainkit/forkdb/internal/forkdb"
	"github.com/chainkit/forkdb/internal/util"
)

// Client wraps go-ethereum's ethclient with retry logic and structured
// logging. It only ever fetches headers — the fork database tracks chain
// structure, not transaction content, so full block bodies are never
// requested.
type Client struct {
	ethClient *ethclient.Client
	config    *Config
}

// NewClient creates a new RPC client with the provided configuration.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	util.Info("connecting to ethereum rpc",
		"url_length", len(config.RPCURL), // Don't log full URL (may contain API key)
		"connection_timeout", config.ConnectionTimeout.String(),
	)

	ethClient, err := ethclient.DialContext(ctx, config.RPCURL)
	if err != nil {
		util.Error("failed to connect to rpc endpoint", "error", err.Error())
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	util.Info("successfully connected to ethereum rpc")

	return &Client{
		ethClient: ethClient,
		config:    config,
	}, nil
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	if c.ethClient != nil {
		c.ethClient.Close()
		util.Info("rpc client connection closed")
	}
}

// HeaderByNumber fetches a header by height with automatic retry logic and
// adapts it into a forkdb.Block the fork database can accept directly.
func (c *Client) HeaderByNumber(ctx context.Context, height uint64) (forkdb.EthBlock, error) {
	startTime := time.Now()

	util.Info("fetching header",
		"method", "eth_getBlockByNumber",
		"block_height", height,
	)

	var header *types.Header
	var lastError error

	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		hdr, err := c.ethClient.HeaderByNumber(reqCtx, big.NewInt(int64(height)))
		if err != nil {
			lastError = err
			return err
		}
		header = hdr
		return nil
	}

	retryCfg := &retryConfig{
		maxRetries: c.config.MaxRetries,
		baseDelay:  c.config.RetryBaseDelay,
	}

	err := retryWithBackoff(
		ctx,
		retryCfg,
		operation,
		util.GlobalLogger,
		fmt.Sprintf("HeaderByNumber(height=%d)", height),
	)

	duration := time.Since(startTime)

	if err != nil {
		if lastError != nil {
			util.RecordRPCError(errorTypeToMetricsLabel(classifyError(lastError)))
		}
		util.Error("failed to fetch header",
			"method", "eth_getBlockByNumber",
			"block_height", height,
			"error", err.Error(),
			"duration_ms", duration.Milliseconds(),
		)
		return forkdb.EthBlock{}, err
	}

	util.Info("successfully fetched header",
		"method", "eth_getBlockByNumber",
		"block_height", height,
		"block_hash", header.Hash().Hex(),
		"duration_ms", duration.Milliseconds(),
	)

	return forkdb.EthBlock{Header: header}, nil
}

// HeaderByHash fetches a header by hash with automatic retry logic.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (forkdb.EthBlock, error) {
	startTime := time.Now()

	util.Info("fetching header", "method", "eth_getBlockByHash", "block_hash", hash.Hex())

	var header *types.Header
	var lastError error

	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		hdr, err := c.ethClient.HeaderByHash(reqCtx, hash)
		if err != nil {
			lastError = err
			return err
		}
		header = hdr
		return nil
	}

	retryCfg := &retryConfig{
		maxRetries: c.config.MaxRetries,
		baseDelay:  c.config.RetryBaseDelay,
	}

	err := retryWithBackoff(
		ctx,
		retryCfg,
		operation,
		util.GlobalLogger,
		fmt.Sprintf("HeaderByHash(hash=%s)", hash.Hex()),
	)

	duration := time.Since(startTime)

	if err != nil {
		if lastError != nil {
			util.RecordRPCError(errorTypeToMetricsLabel(classifyError(lastError)))
		}
		util.Error("failed to fetch header",
			"method", "eth_getBlockByHash",
			"block_hash", hash.Hex(),
			"error", err.Error(),
			"duration_ms", duration.Milliseconds(),
		)
		return forkdb.EthBlock{}, err
	}

	return forkdb.EthBlock{Header: header}, nil
}

// LatestHeaderNumber returns the height of the chain head as seen by the
// connected node. Used by the live-tail coordinator to know how far it is
// behind.
func (c *Client) LatestHeaderNumber(ctx context.Context) (uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	header, err := c.ethClient.HeaderByNumber(reqCtx, nil)
	if err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(classifyError(err)))
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// ChainID returns the chain ID of the connected network. Useful for
// verifying we're connected to the correct network.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	chainID, err := c.ethClient.ChainID(reqCtx)
	if err != nil {
		util.Error("failed to fetch chain id", "error", err.Error())
		return nil, err
	}

	util.Info("fetched chain id", "chain_id", chainID.String())
	return chainID, nil
}

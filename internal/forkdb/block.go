// Package forkdb implements the fork database: the in-memory structure that
// tracks every candidate block a node has observed near the chain tip,
// organizes them into the tree of forks they induce, and answers the
// structural queries a consensus engine needs to switch between forks.
//
// The database is not internally synchronized. Every exported method must be
// serialized by the caller, exactly as a single-threaded consensus loop would
// hold an exclusive lock around its chain state.
package forkdb

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// IDLength is the width of a block identifier. go-ethereum block hashes are
// 32 bytes; other chains in this codebase's domain use 20-byte identifiers,
// but the database only ever compares IDs for equality and never interprets
// their bytes, so a single fixed-width array serves both.
const IDLength = 32

// ID is an opaque block identifier. The zero value is the sentinel "no
// parent" identifier: a root block reports PreviousID() == ZeroID.
type ID [IDLength]byte

// ZeroID is the sentinel parent identifier for a chain root.
var ZeroID = ID{}

// IsZero reports whether id is the sentinel root identifier.
func (id ID) IsZero() bool { return id == ZeroID }

// String renders the identifier as a 0x-prefixed hex string.
func (id ID) String() string {
	return fmt.Sprintf("0x%x", id[:])
}

// Block is the interface the database consumes from the surrounding node.
// It deliberately says nothing about hashing, signatures, or transaction
// content — those belong to the block type itself, out of scope here.
type Block interface {
	ID() ID
	PreviousID() ID
	BlockNum() uint64
}

// EthBlock adapts a go-ethereum header into the Block interface so the
// database can be exercised against real block data fetched over RPC
// (see internal/rpc and internal/ingest) without the core ever importing
// go-ethereum's execution or consensus packages itself.
type EthBlock struct {
	Header *types.Header
}

// ID returns the block's hash, truncated to nothing — go-ethereum hashes are
// already 32 bytes wide, matching ID exactly.
func (b EthBlock) ID() ID {
	return ID(b.Header.Hash())
}

// PreviousID returns the parent block's hash.
func (b EthBlock) PreviousID() ID {
	return ID(b.Header.ParentHash)
}

// BlockNum returns the block height.
func (b EthBlock) BlockNum() uint64 {
	return b.Header.Number.Uint64()
}

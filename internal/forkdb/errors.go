package forkdb

import "errors"

var (
	// ErrUnlinkableBlock is raised internally when a pushed block's parent
	// is not present in the linked index. PushBlock absorbs it at the
	// boundary — the block is staged in the unlinked index instead of being
	// returned to the caller as a failure; orphaning is a normal condition,
	// not an error state (see the design note on the unreachable throw in
	// the source this behavior is modeled on).
	ErrUnlinkableBlock = errors.New("forkdb: block references an unknown parent")

	// ErrInvalidParent is returned from PushBlock when the named parent
	// exists but is flagged invalid. It is fatal for the pushed block and is
	// not absorbed — the caller decides whether to discard or mark
	// descendants.
	ErrInvalidParent = errors.New("forkdb: parent block is flagged invalid")

	// ErrUnknownBlock is returned from FetchBranchFrom when either endpoint
	// is not present in the linked index.
	ErrUnknownBlock = errors.New("forkdb: block not found in linked index")

	// ErrReorderingLimit is the suggested (not enforced by default) error
	// for a FetchBranchFrom call whose reconstructed branch would exceed
	// MaxReordering. It documents the intended reorder depth; see
	// Config.MaxReordering.
	ErrReorderingLimit = errors.New("forkdb: branch exceeds maximum reordering depth")
)

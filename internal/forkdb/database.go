package forkdb

import "fmt"

// Database tracks every candidate block observed near the chain tip, the
// tree of forks they induce, and the current best-chain head. It is not
// internally synchronized — every exported method must be serialized by the
// caller.
type Database struct {
	cfg Config

	linked   *multiIndex
	unlinked *multiIndex

	head    ID
	headNum uint64
	empty   bool

	evictionsTotal  uint64
	promotionsTotal uint64
}

// Stats is a snapshot of the database's size and lifetime activity
// counters, cheap enough to poll on an interval for telemetry. It carries
// no Prometheus dependency itself — see util.SetLinkedSetSize and friends
// for the caller-side metrics this is meant to feed.
type Stats struct {
	Linked          int
	Unlinked        int
	EvictionsTotal  uint64
	PromotionsTotal uint64
}

// Stats returns a snapshot of current index sizes and cumulative eviction
// and orphan-promotion counts.
func (db *Database) Stats() Stats {
	return Stats{
		Linked:          db.linked.len(),
		Unlinked:        db.unlinked.len(),
		EvictionsTotal:  db.evictionsTotal,
		PromotionsTotal: db.promotionsTotal,
	}
}

// New constructs an empty fork database with the given configuration.
func New(cfg Config) *Database {
	return &Database{
		cfg:      cfg,
		linked:   newMultiIndex(),
		unlinked: newMultiIndex(),
		empty:    true,
	}
}

// NewWithStorageHint is New, but pre-sizes the linked index's by-id map
// using hint's capacity estimate. hint's backing region is never read from
// or written to; this only saves a handful of map growth-and-rehash steps
// during an initial backfill. Passing nil is equivalent to New.
func NewWithStorageHint(cfg Config, hint *StorageHint) *Database {
	if hint == nil {
		return New(cfg)
	}
	return &Database{
		cfg:      cfg,
		linked:   newMultiIndexWithCapacity(hint.LinkedCapacityHint()),
		unlinked: newMultiIndex(),
		empty:    true,
	}
}

// Reset clears both indexes and marks the head empty.
func (db *Database) Reset() {
	db.linked.clear()
	db.unlinked.clear()
	db.head = ZeroID
	db.headNum = 0
	db.empty = true
}

// SetMaxSize changes the retention window and re-runs eviction against the
// current head with the new size.
func (db *Database) SetMaxSize(s uint64) {
	db.cfg.MaxWindow = s
	db.evict()
}

// StartBlock seeds the database with b as the first block: a linked-index
// insertion with head set unconditionally. It is intended for the genesis or
// recovery case and does not validate linkage.
func (db *Database) StartBlock(b Block) {
	x := newItem(b)
	db.linked.insert(x)
	db.head = x.ID
	db.headNum = x.Num
	db.empty = false
	db.evict()
}

// PushBlock is the primary ingress. It returns the resulting head item.
// ErrInvalidParent is the only error ever returned — an unlinkable block is
// absorbed into the unlinked (orphan) index and staged for later promotion
// rather than reported as a failure.
func (db *Database) PushBlock(b Block) (Item, error) {
	x := newItem(b)

	if err := db.pushLinked(x); err != nil {
		if err == ErrInvalidParent {
			return db.Head(), err
		}
		// ErrUnlinkableBlock: stage as an orphan and return the head
		// unchanged, exactly as specified.
		db.unlinked.insert(x)
		return db.Head(), nil
	}

	db.promote(x.ID)
	return db.Head(), nil
}

// pushLinked attempts to admit x into the linked index. It advances head on
// a new max (ties do not move head — first seen at a height wins) and
// triggers eviction whenever head advances.
func (db *Database) pushLinked(x Item) error {
	if !db.empty && !x.PreviousID.IsZero() {
		parent, ok := db.linked.byIDLookup(x.PreviousID)
		if !ok {
			return ErrUnlinkableBlock
		}
		if parent.Invalid {
			return ErrInvalidParent
		}
	}

	if db.cfg.DebugChecks && !db.acyclic(x) {
		panic(fmt.Sprintf("forkdb: cycle detected inserting block %s at num %d", x.ID, x.Num))
	}

	db.linked.insert(x)

	advance := db.empty || x.Num > db.headNum
	db.empty = false

	if advance {
		db.head = x.ID
		db.headNum = x.Num
		db.evict()
	}

	return nil
}

// acyclic walks x's ancestor chain through the linked index and reports
// false if it ever encounters x.ID again. Only consulted when
// Config.DebugChecks is set — every previous_id strictly decreases in num
// by construction, so this walk terminates in at most db.Len() steps.
func (db *Database) acyclic(x Item) bool {
	cur := x.PreviousID
	for i := 0; i < db.linked.len()+1; i++ {
		if cur == x.ID {
			return false
		}
		parent, ok := db.linked.byIDLookup(cur)
		if !ok {
			return true
		}
		cur = parent.PreviousID
	}
	return false
}

// promote drives orphan promotion to a fixpoint starting from the item that
// was just linked at rootID. Converted to an explicit worklist (LIFO, so the
// traversal stays depth-first) rather than the mutually recursive
// _push_block/_push_next of the source this is modeled on, to avoid stack
// growth on pathological inputs.
func (db *Database) promote(rootID ID) {
	work := []ID{rootID}

	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]

		for _, cand := range db.unlinked.byPreviousLookup(id) {
			db.unlinked.eraseByID(cand.ID)

			if err := db.pushLinked(cand); err != nil {
				// A promoted item whose parent is now known-invalid is
				// dropped, not reinserted.
				continue
			}
			db.promotionsTotal++
			work = append(work, cand.ID)
		}
	}
}

// evict drops items below the retention window from both indexes. Called
// after every head advance and after SetMaxSize.
func (db *Database) evict() {
	if db.empty {
		return
	}
	minKeep := uint64(0)
	if db.headNum > db.cfg.MaxWindow {
		minKeep = db.headNum - db.cfg.MaxWindow
	}
	removed := db.linked.eraseBelow(minKeep)
	removed = append(removed, db.unlinked.eraseBelow(minKeep)...)
	db.evictionsTotal += uint64(len(removed))
}

// PopBlock resets head to the current head's previous_id. It does not
// remove the popped block from the index — callers may still fetch it. The
// empty flag is cleared unconditionally, matching the documented (if
// surprising) behavior of the source this is modeled on: pop is a cursor
// move, not a deletion, and is not itself guarded by emptiness.
func (db *Database) PopBlock() {
	if cur, ok := db.linked.byIDLookup(db.head); ok {
		db.head = cur.PreviousID
		if parent, ok := db.linked.byIDLookup(db.head); ok {
			db.headNum = parent.Num
		}
	}
	db.empty = false
}

// Remove erases id from the linked index only — it does not sweep the
// unlinked index, and does not adjust head if id happened to be it.
func (db *Database) Remove(id ID) {
	db.linked.eraseByID(id)
}

// SetHead overrides the head pointer to it.ID without checking that it is
// present in the index. Used by external recovery paths.
func (db *Database) SetHead(it Item) {
	db.head = it.ID
	db.headNum = it.Num
	db.empty = false
}

// Head returns the current head item, or the zero Item if the database is
// empty.
func (db *Database) Head() Item {
	if db.empty {
		return Item{}
	}
	if it, ok := db.linked.byIDLookup(db.head); ok {
		return it
	}
	return Item{ID: db.head, Num: db.headNum}
}

// IsKnownBlock reports whether id appears in either index.
func (db *Database) IsKnownBlock(id ID) bool {
	if _, ok := db.linked.byIDLookup(id); ok {
		return true
	}
	_, ok := db.unlinked.byIDLookup(id)
	return ok
}

// IsOrphan reports whether id is currently staged in the unlinked index,
// i.e. whether the most recent PushBlock for it diverted it there instead
// of admitting it to the linked index. Callers that need to distinguish
// "staged as an orphan" from "linked but didn't become head" — PushBlock's
// return value alone conflates the two — should check this rather than
// comparing the returned head against the pushed block's id.
func (db *Database) IsOrphan(id ID) bool {
	_, ok := db.unlinked.byIDLookup(id)
	return ok
}

// FetchBlock looks up id in the linked index first, then the unlinked index.
func (db *Database) FetchBlock(id ID) (Item, bool) {
	if it, ok := db.linked.byIDLookup(id); ok {
		return it, true
	}
	return db.unlinked.byIDLookup(id)
}

// FetchBlockByNumber returns every linked-index item at height n, in
// ascending insertion-stable order. Orphans are never included.
func (db *Database) FetchBlockByNumber(n uint64) []Item {
	return db.linked.byNumLookup(n)
}

// MarkInvalid flags id as invalid so no future block may extend it. Go's
// value-copy query surface means callers never hold a mutable reference into
// the index, so this explicit setter is the path for flagging a block bad
// after the fact (e.g. on consensus-engine validation failure). Reports
// whether id was present in the linked index.
func (db *Database) MarkInvalid(id ID) bool {
	return db.linked.setInvalid(id, true)
}

// FetchBranchFrom finds the common ancestor of a and b and returns the two
// divergent branches, ordered head-down to the child of the common
// ancestor. The common ancestor itself is never included. Both a and b must
// be present in the linked index.
func (db *Database) FetchBranchFrom(a, b ID) ([]Item, []Item, error) {
	A, ok := db.linked.byIDLookup(a)
	if !ok {
		return nil, nil, ErrUnknownBlock
	}
	B, ok := db.linked.byIDLookup(b)
	if !ok {
		return nil, nil, ErrUnknownBlock
	}

	var branchA, branchB []Item
	var stepped bool

	for A.Num > B.Num {
		stepped = true
		branchA = append(branchA, A)
		parent, ok := db.linked.byIDLookup(A.PreviousID)
		if !ok {
			break
		}
		A = parent
	}
	for B.Num > A.Num {
		stepped = true
		branchB = append(branchB, B)
		parent, ok := db.linked.byIDLookup(B.PreviousID)
		if !ok {
			break
		}
		B = parent
	}

	for A.PreviousID != B.PreviousID {
		stepped = true
		branchA = append(branchA, A)
		branchB = append(branchB, B)

		parentA, okA := db.linked.byIDLookup(A.PreviousID)
		parentB, okB := db.linked.byIDLookup(B.PreviousID)
		if !okA || !okB {
			break
		}
		A, B = parentA, parentB
	}

	// Append the final converged pair only when some walking loop actually
	// stepped AND A, B are still distinct blocks. Both conditions are
	// needed: "stepped" alone wrongly re-appends the shared node when one
	// endpoint descends directly from the other (A and B converge onto the
	// very same block); "A.ID != B.ID" alone wrongly appends a pair of
	// untouched immediate siblings passed in at the same height sharing a
	// parent already, where no loop should run at all. Together they match
	// the first_branch_exist/second_branch_exist guard in the source this
	// is modeled on.
	if stepped && A.ID != B.ID {
		branchA = append(branchA, A)
		branchB = append(branchB, B)
	}

	if db.cfg.EnforceReorderingLimit {
		depth := uint64(len(branchA))
		if uint64(len(branchB)) > depth {
			depth = uint64(len(branchB))
		}
		if depth > db.cfg.MaxReordering {
			return nil, nil, ErrReorderingLimit
		}
	}

	return branchA, branchB, nil
}

// Len returns the number of items currently in the linked index.
func (db *Database) Len() int { return db.linked.len() }

// UnlinkedLen returns the number of items currently staged in the unlinked
// (orphan) index.
func (db *Database) UnlinkedLen() int { return db.unlinked.len() }

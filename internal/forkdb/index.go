package forkdb

import "sort"

// multiIndex is the multi-key container both the linked and unlinked indexes
// are instances of: a unique lookup by id, a non-unique lookup by previous
// id, and a non-unique ordered lookup by block num. All three views are kept
// consistent within each of insert/eraseByID/eraseBelow/setInvalid — there is
// no path that updates one view without the others.
//
// Items are stored behind pointers internally so the invalid flag can be
// flipped in place (design note: "the invalid flag mutation requires a
// mutable lookup path on the index"); every exported forkdb.Database
// method still hands callers a value copy, never one of these pointers.
type multiIndex struct {
	byID       map[ID]*Item
	byPrevious map[ID][]*Item // insertion order within a parent; unlinked index only
	byNum      map[uint64][]*Item
	nums       []uint64 // sorted ascending, distinct heights currently present
}

func newMultiIndex() *multiIndex {
	return newMultiIndexWithCapacity(0)
}

// newMultiIndexWithCapacity pre-sizes the by-id map to cap, a hint applied
// only at construction (see StorageHint) and never consulted again.
func newMultiIndexWithCapacity(cap int) *multiIndex {
	return &multiIndex{
		byID:       make(map[ID]*Item, cap),
		byPrevious: make(map[ID][]*Item),
		byNum:      make(map[uint64][]*Item),
	}
}

func (m *multiIndex) len() int { return len(m.byID) }

// insert adds it to all three views. The caller must ensure it.ID is not
// already present; insert does not check for duplicates.
func (m *multiIndex) insert(it Item) *Item {
	stored := new(Item)
	*stored = it

	m.byID[it.ID] = stored
	m.byPrevious[it.PreviousID] = append(m.byPrevious[it.PreviousID], stored)

	if _, ok := m.byNum[it.Num]; !ok {
		m.insertNum(it.Num)
	}
	m.byNum[it.Num] = append(m.byNum[it.Num], stored)

	return stored
}

func (m *multiIndex) insertNum(num uint64) {
	i := sort.Search(len(m.nums), func(i int) bool { return m.nums[i] >= num })
	m.nums = append(m.nums, 0)
	copy(m.nums[i+1:], m.nums[i:])
	m.nums[i] = num
}

func (m *multiIndex) removeNum(num uint64) {
	i := sort.Search(len(m.nums), func(i int) bool { return m.nums[i] >= num })
	if i < len(m.nums) && m.nums[i] == num {
		m.nums = append(m.nums[:i], m.nums[i+1:]...)
	}
}

// byIDLookup returns a value copy, never the stored pointer.
func (m *multiIndex) byIDLookup(id ID) (Item, bool) {
	stored, ok := m.byID[id]
	if !ok {
		return Item{}, false
	}
	return *stored, true
}

// byPreviousLookup returns value copies of every item whose previous_id
// equals id, in the order they were inserted.
func (m *multiIndex) byPreviousLookup(id ID) []Item {
	matches := m.byPrevious[id]
	if len(matches) == 0 {
		return nil
	}
	out := make([]Item, len(matches))
	for i, it := range matches {
		out[i] = *it
	}
	return out
}

// byNumLookup returns value copies of every item at height num, in
// insertion-stable order.
func (m *multiIndex) byNumLookup(num uint64) []Item {
	matches := m.byNum[num]
	if len(matches) == 0 {
		return nil
	}
	out := make([]Item, len(matches))
	for i, it := range matches {
		out[i] = *it
	}
	return out
}

// setInvalid flags the stored item with id as invalid. Reports whether the
// id was present.
func (m *multiIndex) setInvalid(id ID, invalid bool) bool {
	stored, ok := m.byID[id]
	if !ok {
		return false
	}
	stored.Invalid = invalid
	return true
}

// eraseByID removes the item with id from all three views. Reports whether
// anything was removed.
func (m *multiIndex) eraseByID(id ID) bool {
	stored, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byID, id)
	m.removeFromSlice(m.byPrevious, stored.PreviousID, stored)
	m.removeFromNumSlice(stored.Num, stored)
	return true
}

func (m *multiIndex) removeFromSlice(set map[ID][]*Item, key ID, target *Item) {
	items := set[key]
	for i, it := range items {
		if it == target {
			items = append(items[:i], items[i+1:]...)
			break
		}
	}
	if len(items) == 0 {
		delete(set, key)
	} else {
		set[key] = items
	}
}

func (m *multiIndex) removeFromNumSlice(num uint64, target *Item) {
	items := m.byNum[num]
	for i, it := range items {
		if it == target {
			items = append(items[:i], items[i+1:]...)
			break
		}
	}
	if len(items) == 0 {
		delete(m.byNum, num)
		m.removeNum(num)
	} else {
		m.byNum[num] = items
	}
}

// eraseBelow removes every item whose num is strictly less than minKeep,
// scanning the by-num view from the lowest height upward, and returns the
// removed items (the caller counts them toward its eviction total).
func (m *multiIndex) eraseBelow(minKeep uint64) []Item {
	var removed []Item

	i := 0
	for i < len(m.nums) && m.nums[i] < minKeep {
		i++
	}
	staleNums := append([]uint64(nil), m.nums[:i]...)

	for _, num := range staleNums {
		for _, it := range m.byNum[num] {
			removed = append(removed, *it)
			delete(m.byID, it.ID)
			m.removeFromSlice(m.byPrevious, it.PreviousID, it)
		}
		delete(m.byNum, num)
	}
	m.nums = m.nums[i:]

	return removed
}

// minNum returns the smallest height currently present, and whether the
// index is non-empty.
func (m *multiIndex) minNum() (uint64, bool) {
	if len(m.nums) == 0 {
		return 0, false
	}
	return m.nums[0], true
}

func (m *multiIndex) clear() {
	m.byID = make(map[ID]*Item)
	m.byPrevious = make(map[ID][]*Item)
	m.byNum = make(map[uint64][]*Item)
	m.nums = nil
}

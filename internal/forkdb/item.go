package forkdb

// Item is the stored record wrapping an observed block with its height and
// invalidity flag — the "fork item" tracked by the database. The database exclusively
// owns Items; every query returns a copy, never a live reference, so callers
// cannot corrupt index state by mutating what they get back.
type Item struct {
	ID         ID
	PreviousID ID
	Num        uint64
	Invalid    bool
	Data       Block
}

func newItem(b Block) Item {
	return Item{
		ID:         b.ID(),
		PreviousID: b.PreviousID(),
		Num:        b.BlockNum(),
		Data:       b,
	}
}

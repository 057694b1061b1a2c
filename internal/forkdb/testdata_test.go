package forkdb

// testBlock is a minimal Block implementation for exercising Database
// without pulling in go-ethereum headers.
type testBlock struct {
	id   ID
	prev ID
	num  uint64
}

func (b testBlock) ID() ID           { return b.id }
func (b testBlock) PreviousID() ID   { return b.prev }
func (b testBlock) BlockNum() uint64 { return b.num }

// bid builds a deterministic, human-readable ID from a short label so test
// traces read like the scenario tags in the design notes (G, A, B1, B2...).
func bid(label string) ID {
	var id ID
	copy(id[:], label)
	return id
}

func block(label, prevLabel string, num uint64) testBlock {
	prev := ZeroID
	if prevLabel != "" {
		prev = bid(prevLabel)
	}
	return testBlock{id: bid(label), prev: prev, num: num}
}

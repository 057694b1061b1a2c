package api

import (
	"sync"
	"testing"

	"github.com/chainkit/forkdb/internal/forkdb"
)

// apiTestBlock is a minimal forkdb.Block implementation for exercising the
// HTTP surface without pulling in go-ethereum headers.
type apiTestBlock struct {
	id   forkdb.ID
	prev forkdb.ID
	num  uint64
}

func (b apiTestBlock) ID() forkdb.ID         { return b.id }
func (b apiTestBlock) PreviousID() forkdb.ID { return b.prev }
func (b apiTestBlock) BlockNum() uint64      { return b.num }

func idFor(t *testing.T, label string) forkdb.ID {
	t.Helper()
	var id forkdb.ID
	copy(id[:], label)
	return id
}

func blockFor(t *testing.T, label, prevLabel string, num uint64) apiTestBlock {
	t.Helper()
	prev := forkdb.ZeroID
	if prevLabel != "" {
		prev = idFor(t, prevLabel)
	}
	return apiTestBlock{id: idFor(t, label), prev: prev, num: num}
}

// newTestServer builds a Server around a fresh Database seeded with a
// four-block linear chain G<-A<-B<-C, returning the server alongside the
// mutex the handlers serialize on (tests that want to push more blocks
// reuse it to mimic the ingestion-side locking discipline).
func newTestServer(t *testing.T) (*Server, *sync.Mutex, *forkdb.Database) {
	t.Helper()

	db := forkdb.New(forkdb.DefaultConfig())
	for _, b := range []apiTestBlock{
		blockFor(t, "G", "", 1),
		blockFor(t, "A", "G", 2),
		blockFor(t, "B", "A", 3),
		blockFor(t, "C", "B", 4),
	} {
		if _, err := db.PushBlock(b); err != nil {
			t.Fatalf("seeding chain: %v", err)
		}
	}

	mu := &sync.Mutex{}
	cfg := NewConfig()
	srv := NewServer(db, mu, cfg)
	return srv, mu, db
}

package api

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/chainkit/forkdb/internal/forkdb"
)

// idHexRegex-style validation happens in parseID below; ids are rendered
// with the 0x prefix forkdb.ID.String() uses so responses round-trip
// through the same query parameters the handlers accept.

// ItemResponse is the wire representation of a forkdb.Item. Data is
// deliberately omitted — it is opaque to the core and callers that need the
// full block content should fetch it by id from the node directly.
type ItemResponse struct {
	ID         string `json:"id"`
	PreviousID string `json:"previous_id"`
	Num        uint64 `json:"num"`
	Invalid    bool   `json:"invalid"`
}

func newItemResponse(it forkdb.Item) ItemResponse {
	return ItemResponse{
		ID:         it.ID.String(),
		PreviousID: it.PreviousID.String(),
		Num:        it.Num,
		Invalid:    it.Invalid,
	}
}

func newItemResponses(items []forkdb.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = newItemResponse(it)
	}
	return out
}

// parseID parses a 0x-prefixed, hex-encoded block identifier into a
// forkdb.ID. forkdb.ID is a fixed IDLength-byte array; a string of the
// wrong width is rejected rather than silently truncated or zero-padded.
func parseID(s string) (forkdb.ID, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return forkdb.ID{}, fmt.Errorf("invalid hex identifier: %w", err)
	}
	if len(raw) != forkdb.IDLength {
		return forkdb.ID{}, fmt.Errorf("identifier must be %d bytes, got %d", forkdb.IDLength, len(raw))
	}
	var id forkdb.ID
	copy(id[:], raw)
	return id, nil
}

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chainkit/forkdb/internal/util"
)

// handleHead handles GET /v1/head — the current best-chain head, or the
// zero item if the database is empty.
func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	head := s.db.Head()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, newItemResponse(head))
}

// handleFetchBlock handles GET /v1/blocks/{id} — fetch_block: linked index
// first, then unlinked (orphan) index.
func (s *Server) handleFetchBlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.mu.Lock()
	item, ok := s.db.FetchBlock(id)
	s.mu.Unlock()

	if !ok {
		writeNotFound(w, "block not known to the fork database")
		return
	}
	writeJSON(w, http.StatusOK, newItemResponse(item))
}

// handleFetchBlockByNumber handles GET /v1/blocks/by-number/{num} —
// fetch_block_by_number: every linked-index item at that height. Orphans
// are never included; the result may list more than one item when forks
// contend for the same height.
func (s *Server) handleFetchBlockByNumber(w http.ResponseWriter, r *http.Request) {
	num, err := strconv.ParseUint(chi.URLParam(r, "num"), 10, 64)
	if err != nil {
		writeBadRequest(w, "num must be a non-negative integer")
		return
	}

	s.mu.Lock()
	items := s.db.FetchBlockByNumber(num)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, newItemResponses(items))
}

// handleIsKnownBlock handles GET /v1/known/{id} — is_known_block: true if
// id appears in either index.
func (s *Server) handleIsKnownBlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.mu.Lock()
	known := s.db.IsKnownBlock(id)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"known": known})
}

// handleFetchBranch handles GET /v1/branch?a=...&b=... — fetch_branch_from:
// the two divergent branches from a and b down to (not including) their
// common ancestor. Both endpoints must be present in the linked index.
func (s *Server) handleFetchBranch(w http.ResponseWriter, r *http.Request) {
	aParam := r.URL.Query().Get("a")
	bParam := r.URL.Query().Get("b")
	if aParam == "" || bParam == "" {
		writeBadRequest(w, "query parameters a and b are both required")
		return
	}

	a, err := parseID(aParam)
	if err != nil {
		writeBadRequest(w, "a: "+err.Error())
		return
	}
	b, err := parseID(bParam)
	if err != nil {
		writeBadRequest(w, "b: "+err.Error())
		return
	}

	s.mu.Lock()
	branchA, branchB, err := s.db.FetchBranchFrom(a, b)
	s.mu.Unlock()

	if err != nil {
		writeNotFound(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"branch_a": newItemResponses(branchA),
		"branch_b": newItemResponses(branchB),
	})
}

// handleHealth handles GET /health — a liveness probe. The fork database
// has no external dependency to check (no connection pool, no disk state
// that can be "down"), so this reports process liveness and the current
// index sizes rather than a health check against a backing store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	linked := s.db.Len()
	unlinked := s.db.UnlinkedLen()
	head := s.db.Head()
	s.mu.Unlock()

	util.SetLinkedSetSize(float64(linked))
	util.SetUnlinkedSetSize(float64(unlinked))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"linked_len":    linked,
		"unlinked_len":  unlinked,
		"head_num":      head.Num,
	})
}

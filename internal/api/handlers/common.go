// Package handlers contains the HTTP handlers for the chat endpoint and
// the entity CRUD surface.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/taskorbit/taskchat/internal/api"
	"github.com/taskorbit/taskchat/internal/pagination"
)

// decodeBody parses a JSON request body, writing a 400 on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// listParams reads page, limit and search from the query string.
func listParams(r *http.Request) (page, limit int, search string) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	page, limit = pagination.Normalize(page, limit)
	return page, limit, q.Get("search")
}

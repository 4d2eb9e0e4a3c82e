/*
Package handler provides the HTTP handlers and routing setup for the chat relay.

This file contains the user search endpoint used when adding members or
starting private rooms.
*/
package handler

import (
	"net/http"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// HandleSearchUsers finds users by username substring, excluding the caller.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		query := r.URL.Query().Get("query")
		if query == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		users, err := deps.Store.SearchUsers(r.Context(), query, identity.UserID, searchResultLimit)
		if err != nil {
			logx.Error(err, "user search failed", "query", query)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file contains the public read APIs used by the storefront chat widget.
*/
package handler

import (
	"context"
	"errors"
	"net/http"

	"propchat/internal/app/store"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/randx"
	"propchat/internal/pkg/req"
	"propchat/internal/pkg/resp"
)

// storeContext bounds a request's store calls.
func storeContext(r *http.Request, deps *AppDeps) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), deps.Config.StoreTimeout)
}

// storeFailure maps a store error to a client error. Missing rows become notFoundCode; anything else
// is logged and reported as unavailable.
func storeFailure(err error, notFoundCode int) *errs.CustomError {
	if errors.Is(err, store.ErrNotFound) {
		return errs.NewError(notFoundCode)
	}

	logx.Error(err, "Store request failed")
	return errs.NewError(errs.ErrStoreUnavailable)
}

// HandleGetAdminID returns the ID of the admin account guests send messages to.
func HandleGetAdminID(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := storeContext(r, deps)
		defer cancel()

		adminID, err := deps.Transcripts.AdminID(ctx)
		if err != nil {
			resp.RespondError(w, r, storeFailure(err, errs.ErrAdminNotProvisioned))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"adminId": adminID})
	}
}

// HandleNewGuestID issues a fresh guest ID for widgets that have not stored one yet.
func HandleNewGuestID(_ *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guestID, err := randx.GuestID()
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"guestId": guestID})
	}
}

// HandleGuestChats returns a guest's chat history from the guest's point of view.
func HandleGuestChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guestID := req.QueryString(r, QueryGuestID)
		if guestID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrGuestIDMissing))
			return
		}
		if !randx.IsValidGuestID(guestID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrGuestIDInvalid))
			return
		}

		ctx, cancel := storeContext(r, deps)
		defer cancel()

		entries, err := deps.Transcripts.GuestHistory(ctx, guestID)
		if err != nil {
			resp.RespondError(w, r, storeFailure(err, errs.ErrGuestNotFound))
			return
		}

		resp.RespondSuccess(w, r, entries)
	}
}

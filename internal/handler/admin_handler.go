/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file contains the back-office APIs. Every route here sits behind the JWT identity middleware.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propchat/internal/app/store"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/resp"
)

// HandleAdminConnected reports whether the caller is the admin and currently connected. Callers that
// are not the admin always get false.
func HandleAdminConnected(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)

		ctx, cancel := storeContext(r, deps)
		defer cancel()

		connected, err := deps.Engine.AdminConnected(ctx, payload.ID)
		if err != nil {
			resp.RespondError(w, r, storeFailure(err, errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, map[string]bool{"connected": connected})
	}
}

// HandleListGuests returns every guest with its connectivity, most recently active first.
func HandleListGuests(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := storeContext(r, deps)
		defer cancel()

		guests, err := deps.Transcripts.ListGuests(ctx)
		if err != nil {
			resp.RespondError(w, r, storeFailure(err, errs.ErrGuestNotFound))
			return
		}

		resp.RespondSuccess(w, r, guests)
	}
}

// HandleGuestConnected reports whether the guest with the internal ID in the path is connected.
func HandleGuestConnected(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guestID := chi.URLParam(r, "id")

		ctx, cancel := storeContext(r, deps)
		defer cancel()

		connected, err := deps.Engine.GuestConnected(ctx, guestID)
		if err != nil {
			resp.RespondError(w, r, storeFailure(err, errs.ErrGuestNotFound))
			return
		}

		resp.RespondSuccess(w, r, map[string]bool{"connected": connected})
	}
}

// HandleAdminGuestChats returns a guest's chat history from the admin's point of view.
func HandleAdminGuestChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		guestID := chi.URLParam(r, "id")

		ctx, cancel := storeContext(r, deps)
		defer cancel()

		entries, err := deps.Transcripts.AdminHistory(ctx, payload.ID, guestID)
		if err != nil {
			resp.RespondError(w, r, storeFailure(err, errs.ErrGuestNotFound))
			return
		}

		resp.RespondSuccess(w, r, entries)
	}
}

// HandleExportTranscript archives a guest's transcript to object storage and returns a download link.
func HandleExportTranscript(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Exporter == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrTranscriptExportDisabled))
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		guestID := chi.URLParam(r, "id")

		archive, err := deps.Exporter.Export(r.Context(), payload.ID, guestID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrGuestNotFound))
				return
			}
			logx.Error(err, "Transcript export failed", "guest", guestID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, archive)
	}
}

/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file contains HandleWebSocket, which rate limits and authenticates the handshake, upgrades the
connection and hands it to the chat engine.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"propchat/internal/app/chat"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/pow"
	"propchat/internal/pkg/req"
	"propchat/internal/pkg/resp"
)

// Handshake query parameters.
const (
	QueryUserID  = "id"
	QueryGuestID = "guestId"
	QueryToken   = "token"
)

// resolveHandshake derives the connection identity from the handshake request.
//
// A signed token's id claim overrides the id parameter. Handshakes that do not identify a user are
// guest handshakes (possibly without a guestId, which customer_connection can supply later) and must
// pass the proof-of-work gate when it is enabled. A malformed guestId is not refused here: the engine
// answers it with socket_error on the open connection.
func resolveHandshake(r *http.Request, deps *AppDeps) (chat.Identity, *errs.CustomError) {
	id := chat.Identity{
		UserID:  req.QueryString(r, QueryUserID),
		GuestID: req.QueryString(r, QueryGuestID),
	}

	token := req.QueryString(r, QueryToken)
	if token == "" {
		token = jwt.BearerToken(r)
	}

	if token != "" {
		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket handshake rejected: invalid token", "error", err.Error())
			return chat.Identity{}, errs.NewError(errs.ErrUnauthorized)
		}
		id.UserID = payload.ID
	} else if id.UserID != "" && deps.Config.UserTokenRequired() {
		logx.Warn("WebSocket handshake rejected: user token required", "user_id", id.UserID)
		return chat.Identity{}, errs.NewError(errs.ErrUnauthorized)
	}

	if id.UserID != "" {
		if id.GuestID != "" {
			logx.Warn("WebSocket handshake rejected: both user and guest identity", "user_id", id.UserID)
			return chat.Identity{}, errs.NewError(errs.ErrInvalidParams)
		}
		return id, nil
	}

	if deps.Pow != nil && deps.Pow.Enabled() {
		proof := req.QueryString(r, pow.TokenQueryKey)
		if proof == "" {
			proof = r.Header.Get(pow.TokenHeaderKey)
		}
		if !deps.Pow.Consume(proof) {
			logx.Info("WebSocket handshake rejected: proof of work missing or stale", "guest_id", id.GuestID)
			return chat.Identity{}, errs.NewError(errs.ErrPowChallengeRequired)
		}
	}

	return id, nil
}

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if deps.HandshakeLimiter != nil && !deps.HandshakeLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity, customErr := resolveHandshake(r, deps)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Hub, conn, identity, deps.Engine)

		logx.Info("WebSocket connection established",
			"handle", client.Handle(),
			"user_id", identity.UserID,
			"guest_id", identity.GuestID)

		client.Run(r.Context())
	}
}

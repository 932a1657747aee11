/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying CORS, request IDs, logging and panic recovery before
delegating to the WebSocket endpoint and the read APIs.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/resp"
)

const (
	PowRate  = 0.5
	PowBurst = 5
)

// Router sets up the main HTTP routing table for the application.
func Router(deps *AppDeps) http.Handler {
	powLimiter := limiter.NewKeyedLimiter(rate.Limit(PowRate), PowBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-PoW-Token"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/chat/admin", HandleGetAdminID(deps))
		api.Get("/guest/chats", HandleGuestChats(deps))
		api.With(powLimiter.Middleware).Post("/guest/id", HandleNewGuestID(deps))

		api.Route("/pow", func(p chi.Router) {
			p.Use(powLimiter.Middleware)
			p.Get("/challenge", HandlePowChallenge(deps))
			p.Post("/verify", HandlePowVerify(deps))
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.With(jwt.RequireIdentity).Get("/connected", HandleAdminConnected(deps))

			admin.Group(func(ar chi.Router) {
				ar.Use(jwt.RequireAdmin)
				ar.Get("/guests", HandleListGuests(deps))
				ar.Get("/guests/{id}/connected", HandleGuestConnected(deps))
				ar.Get("/guests/{id}/chats", HandleAdminGuestChats(deps))
				ar.Post("/guests/{id}/transcript", HandleExportTranscript(deps))
			})
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

// HandleHealth reports liveness and store reachability.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeStatus := "ok"
		if err := deps.Store.Ping(r.Context()); err != nil {
			logx.Warn("Health check: store unreachable", "error", err.Error())
			storeStatus = "unavailable"
		}

		data := map[string]any{
			"status":      "ok",
			"service":     "propchat",
			"store":       storeStatus,
			"connections": deps.Hub.Len(),
		}
		resp.RespondSuccess(w, r, data)
	}
}

package handler

import (
	"propchat/internal/app/chat"
	"propchat/internal/app/store"
	"propchat/internal/app/transcript"
	"propchat/internal/configs"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/pow"
)

// AppDeps bundles what the HTTP and WebSocket handlers need.
type AppDeps struct {
	Config *configs.AppConfig
	Store  store.Store

	Hub    *chat.Hub
	Engine *chat.Engine

	Transcripts *transcript.Service

	// Exporter is nil when transcript archiving is not configured.
	Exporter *transcript.Exporter

	Pow *pow.Manager

	// HandshakeLimiter rate limits WebSocket handshakes per client IP.
	HandshakeLimiter *limiter.KeyedLimiter
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"propchat/internal/app/chat"
	"propchat/internal/app/storage"
	"propchat/internal/app/transcript"
	"propchat/internal/configs"
	"propchat/internal/handler"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/pow"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(cfg *configs.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *configs.AppConfig) error {
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Str("store_driver", cfg.StoreDriver).
		Bool("user_token_required", cfg.UserTokenRequired()).
		Bool("transcript_archive", cfg.TranscriptArchiveEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// handles recorded before a crash or an unclean exit can never reconnect
	stale, err := st.ClearAllSockets(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset presence: %w", err)
	}
	if stale > 0 {
		logx.Warn("Cleared stale presence left by a previous run.", "rows", stale)
	}

	hub := chat.NewHub()

	messageLimiter := limiter.NewKeyedLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst)
	defer messageLimiter.Stop()

	handshakeLimiter := limiter.NewKeyedLimiter(rate.Limit(cfg.HandshakeRate), cfg.HandshakeBurst)
	defer handshakeLimiter.Stop()

	powManager := pow.NewManager(cfg.PowDifficulty)
	defer powManager.Stop()

	engine := chat.NewEngine(chat.EngineConfig{
		Presence:       st,
		Chats:          st,
		Emitter:        hub,
		MessageLimiter: messageLimiter,
		StoreTimeout:   cfg.StoreTimeout,
	})

	transcripts := transcript.NewService(st, st)

	var exporter *transcript.Exporter
	if cfg.TranscriptArchiveEnabled() {
		objects, err := storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3Region:          cfg.S3Region,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize transcript storage: %w", err)
		}
		exporter = transcript.NewExporter(transcripts, objects, transcript.DefaultLinkTTL)
	}

	router := handler.Router(&handler.AppDeps{
		Config:           cfg,
		Store:            st,
		Hub:              hub,
		Engine:           engine,
		Transcripts:      transcripts,
		Exporter:         exporter,
		Pow:              powManager,
		HandshakeLimiter: handshakeLimiter,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logx.Info(fmt.Sprintf("propchat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// hijacked WebSocket connections are not covered by server.Shutdown; wait for their presence
	// cleanup before the deferred store close
	hubCtx, cancelHub := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelHub()

	if err := hub.Shutdown(hubCtx); err != nil {
		logx.Error(err, "Hub shutdown did not finish; some presence rows may stay set until next start")
	}

	logx.Info("Server gracefully stopped.")
	return nil
}

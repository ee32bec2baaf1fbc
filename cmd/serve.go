package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	adaptersaudio "github.com/satriahrh/narrator/server/adapters/audio"
	"github.com/satriahrh/narrator/server/internal/api"
	"github.com/satriahrh/narrator/server/internal/auth"
	"github.com/satriahrh/narrator/server/internal/websocket"
	"github.com/satriahrh/narrator/server/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the narration HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	textToSpeech, defaultVoice, err := newTextToSpeech(cfg, logger)
	if err != nil {
		return err
	}

	narrationRepo, closeRepo, err := newNarrationRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeRepo(closeCtx); err != nil {
			logger.Error("Failed to close narration storage", zap.Error(err))
		}
	}()

	// Initialize usecase services
	narrationService := usecase.NewNarrationService(
		textToSpeech,
		adaptersaudio.NewDecoder(),
		narrationRepo,
		logger,
		usecase.WithNarrationTTL(cfg.NarrationTTL),
		usecase.WithDefaultVoice(defaultVoice),
	)

	cleanup := websocket.NewNarrationCleanupService(narrationRepo, cfg.NarrationCleanupInterval, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Initialize WebSocket hub with narration service
	hub := websocket.NewHub(narrationService, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("64M"))

	// Initialize API routes
	api.InitRoutes(e, narrationService, hub, issuer, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Narrator server started",
		zap.String("port", cfg.Port),
		zap.String("ttsProvider", cfg.TTSProvider),
		zap.String("narrationStorage", cfg.NarrationStorage),
		zap.String("defaultVoice", defaultVoice.String()))

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopHub()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}

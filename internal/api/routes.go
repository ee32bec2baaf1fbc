package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
	"github.com/satriahrh/narrator/server/internal/audio"
	"github.com/satriahrh/narrator/server/internal/auth"
	"github.com/satriahrh/narrator/server/internal/websocket"
	"github.com/satriahrh/narrator/server/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	// Maximum size of one uploaded audio file.
	maxUploadSize = 32 << 20
)

// Handler serves the narration HTTP API
type Handler struct {
	narrations *usecase.NarrationService
	logger     *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, narrations *usecase.NarrationService, hub *websocket.Hub, issuer *auth.TokenIssuer, logger *zap.Logger) {
	h := &Handler{
		narrations: narrations,
		logger:     logger,
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "narrator-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1", JWTAuth(issuer, logger))

	v1.GET("/voices", h.listVoices)
	v1.POST("/speech", h.synthesizeSpeech)
	v1.POST("/narrations", h.createNarration)
	v1.GET("/narrations", h.listNarrations)
	v1.GET("/narrations/:id", h.getNarration)
	v1.GET("/narrations/:id/audio", h.getNarrationAudio)
	v1.POST("/concat", h.concatAudio)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocketWithAuth(hub, c, clientID(c), logger)
	}, JWTAuth(issuer, logger))
}

func (h *Handler) listVoices(c echo.Context) error {
	voices := lo.Map(h.narrations.Voices(), func(v entities.Voice, _ int) VoiceResponse {
		return VoiceResponse{
			Name:    v.String(),
			ID:      v.ID(),
			Default: v == h.narrations.DefaultVoice(),
		}
	})
	return c.JSON(http.StatusOK, voices)
}

func (h *Handler) synthesizeSpeech(c echo.Context) error {
	var req SpeechRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Failed to bind speech request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	result, err := h.narrations.Synthesize(c.Request().Context(), req.Text, req.Voice)
	if err != nil {
		return h.writeError(c, err)
	}

	c.Response().Header().Set("X-Audio-Length", strconv.FormatFloat(result.AudioLength, 'f', -1, 64))
	return c.Blob(http.StatusOK, audio.DetectFormat(result.Audio).ContentType(), result.Audio)
}

func (h *Handler) createNarration(c echo.Context) error {
	var req NarrationRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Failed to bind narration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	narration, err := h.narrations.Narrate(c.Request().Context(), usecase.NarrateRequest{
		Segments: req.Segments,
		Voice:    req.Voice,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	h.logger.Info("Narration created",
		zap.String("clientId", clientID(c)),
		zap.String("narrationId", narration.ID))

	return c.JSON(http.StatusCreated, narration)
}

func (h *Handler) listNarrations(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = min(parsed, maxListLimit)
	}

	narrations, err := h.narrations.List(c.Request().Context(), limit)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, NarrationListResponse{
		Narrations: narrations,
		Count:      len(narrations),
	})
}

func (h *Handler) getNarration(c echo.Context) error {
	narration, err := h.narrations.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, narration)
}

func (h *Handler) getNarrationAudio(c echo.Context) error {
	narration, err := h.narrations.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	if narration.IsExpired(time.Now()) || len(narration.Audio) == 0 {
		return c.JSON(http.StatusGone, ErrorResponse{
			Error:   "expired",
			Message: "Narration audio is no longer available",
		})
	}

	filename := fmt.Sprintf("narration-%s.%s", narration.ID, audio.DetectFormat(narration.Audio).Extension())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", filename))
	return c.Blob(http.StatusOK, narration.ContentType, narration.Audio)
}

func (h *Handler) concatAudio(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warn("Failed to parse multipart form", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Expected a multipart form with audio files",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_files",
			Message: "At least one file is required in the 'files' field",
		})
	}

	buffers := make([][]byte, len(files))
	for i, file := range files {
		buffers[i], err = readUpload(file)
		if err != nil {
			h.logger.Warn("Failed to read uploaded file",
				zap.String("filename", file.Filename),
				zap.Error(err))
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_file",
				Message: fmt.Sprintf("Could not read file %q", file.Filename),
			})
		}
	}

	joined, err := h.narrations.Concat(c.Request().Context(), buffers)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Blob(http.StatusOK, audio.DetectFormat(joined).ContentType(), joined)
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxUploadSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxUploadSize)
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadSize))
}

// writeError maps a service failure to a status code and error body
func (h *Handler) writeError(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case errors.Is(err, usecase.ErrNoSegments):
		status, code = http.StatusBadRequest, "no_segments"
	case errors.Is(err, repositories.ErrNarrationNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		switch domain.Kind(err) {
		case domain.KindConfiguration:
			status, code = http.StatusInternalServerError, "configuration_error"
		case domain.KindRemote:
			status, code = http.StatusBadGateway, "remote_error"
		case domain.KindDecode:
			status, code = http.StatusUnprocessableEntity, "decode_error"
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("errorCode", code),
			zap.Error(err))
	} else {
		h.logger.Warn("Request rejected",
			zap.String("path", c.Path()),
			zap.String("errorCode", code),
			zap.Error(err))
	}

	return c.JSON(status, ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

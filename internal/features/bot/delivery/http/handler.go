package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "tipjar-backend/internal/common/errors"
	"tipjar-backend/internal/common/logger"
	"tipjar-backend/internal/common/middleware"
)

// UpdateHandler processes one inbound Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update) error
}

// Pinger reports liveness of the backing store.
type Pinger interface {
	Healthy(ctx context.Context) error
}

type WebhookHandler struct {
	updates UpdateHandler
	store   Pinger
	secret  string
}

func NewWebhookHandler(updates UpdateHandler, store Pinger, secret string) *WebhookHandler {
	return &WebhookHandler{
		updates: updates,
		store:   store,
		secret:  secret,
	}
}

func (h *WebhookHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook/:secret", h.handleWebhook)
	router.GET("/healthz", h.handleHealth)
}

// handleWebhook acks every handled event with 200. Telegram retries
// non-200 responses, and a redelivered confirm callback could re-trigger a
// partially completed transfer, so errors are classified and logged here
// instead of being surfaced to the transport.
func (h *WebhookHandler) handleWebhook(c *gin.Context) {
	if c.Param("secret") != h.secret {
		c.Status(http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.Debug().Err(err).Msg("Ignoring malformed update payload")
		c.Status(http.StatusOK)
		return
	}
	if update.Message == nil && update.CallbackQuery == nil {
		c.Status(http.StatusOK)
		return
	}

	if err := h.updates.HandleUpdate(c.Request.Context(), &update); err != nil {
		h.logError(c, err)
	}
	c.Status(http.StatusOK)
}

func (h *WebhookHandler) logError(c *gin.Context, err error) {
	requestID := middleware.RequestIDFrom(c)

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		logger.Error().Str("request_id", requestID).Err(err).Msg("Update handling failed")
		return
	}

	event := logger.Error()
	switch {
	case appErr.IsInvariant():
		event = logger.Error().Bool("alert", true)
	case appErr.IsExternal():
		event = logger.Warn()
	case appErr.IsValidation(), appErr.IsPrecondition():
		event = logger.Info()
	}
	event.Str("request_id", requestID).
		Str("code", string(appErr.Code)).
		Int64("user_id", appErr.UserID).
		Err(appErr).
		Msg("Update handling failed")
}

func (h *WebhookHandler) handleHealth(c *gin.Context) {
	if err := h.store.Healthy(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

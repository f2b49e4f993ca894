package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/gateway"
	"github.com/counseldesk/gateway/pkg/logger"
)

type AskService interface {
	Ask(ctx context.Context, question string) (map[string]any, error)
	Ingest(ctx context.Context, req gateway.IngestRequest) (map[string]any, error)
	Feedback(ctx context.Context, question, feedback string) error
}

type AskHandler struct {
	svc AskService
}

func NewAskHandler(svc AskService) *AskHandler {
	return &AskHandler{svc: svc}
}

func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.svc.Ask(c.Context(), req.Question)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(resp)
}

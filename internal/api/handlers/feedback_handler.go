package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/pkg/logger"
)

type FeedbackHandler struct {
	svc AskService
}

func NewFeedbackHandler(svc AskService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

func (h *FeedbackHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		Feedback string `json:"feedback"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.svc.Feedback(c.Context(), req.Question, req.Feedback); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}

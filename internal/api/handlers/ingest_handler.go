package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/gateway"
	"github.com/counseldesk/gateway/pkg/logger"
)

type IngestHandler struct {
	svc AskService
}

func NewIngestHandler(svc AskService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		Title   string `json:"title"`
		Type    string `json:"type"`
		Repo    string `json:"repo"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.svc.Ingest(c.Context(), gateway.IngestRequest{
		Title:        req.Title,
		DocumentType: req.Type,
		Repo:         req.Repo,
		Content:      req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}

	// The ingestion service's response is handed back verbatim.
	return c.JSON(resp)
}

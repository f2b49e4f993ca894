package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/counseldesk/gateway/internal/catalog"
)

type CatalogLister interface {
	List(ctx context.Context) (*catalog.Catalog, error)
}

type DocumentsHandler struct {
	aggregator CatalogLister
}

func NewDocumentsHandler(aggregator CatalogLister) *DocumentsHandler {
	return &DocumentsHandler{aggregator: aggregator}
}

func (h *DocumentsHandler) HandleDocuments(c *fiber.Ctx) error {
	cat, err := h.aggregator.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"repos":           cat.Repos,
		"documents":       cat.Documents,
		"total_documents": len(cat.Documents),
		"total_chunks":    cat.TotalChunks,
		"truncated":       cat.Truncated,
	})
}

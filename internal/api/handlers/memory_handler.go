package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/counseldesk/gateway/internal/storage/models"
	"github.com/counseldesk/gateway/internal/storage/sqlite"
)

type LogReader interface {
	Recent(ctx context.Context, limit int) ([]models.QueryLogEntry, error)
	SummaryStats(ctx context.Context) (*models.Stats, error)
}

type MemoryHandler struct {
	store LogReader
}

func NewMemoryHandler(store LogReader) *MemoryHandler {
	return &MemoryHandler{store: store}
}

// HandleMemory returns the recent query log plus summary stats. When
// the store is unreachable it degrades to an empty payload instead of
// failing: browsing the audit log is never load-bearing.
func (h *MemoryHandler) HandleMemory(c *fiber.Ctx) error {
	entries, err := h.store.Recent(c.Context(), 100)
	if err != nil {
		if errors.Is(err, sqlite.ErrStoreUnavailable) {
			return c.JSON(fiber.Map{
				"entries": []models.QueryLogEntry{},
				"total":   0,
				"message": "query log store unavailable",
			})
		}
		return respondError(c, err)
	}

	stats, err := h.store.SummaryStats(c.Context())
	if err != nil {
		if errors.Is(err, sqlite.ErrStoreUnavailable) {
			return c.JSON(fiber.Map{
				"entries": []models.QueryLogEntry{},
				"total":   0,
				"message": "query log store unavailable",
			})
		}
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"stats":   stats,
		"total":   stats.TotalQueries,
	})
}

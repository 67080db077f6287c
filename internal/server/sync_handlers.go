package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wisangg/storysync/internal/syncer"
)

type syncHandler struct {
	coordinator *syncer.Coordinator
}

// Trigger requests a sync pass and renders its outcome. A pass that could
// not start is distinguished from one that ran.
func (h *syncHandler) Trigger(c echo.Context) error {
	result := h.coordinator.SyncOfflineStories()
	if !result.Success {
		switch result.Message {
		case "sync already in progress":
			return c.JSON(http.StatusConflict, result)
		case "device is offline":
			return c.JSON(http.StatusServiceUnavailable, result)
		default:
			return c.JSON(http.StatusInternalServerError, result)
		}
	}
	return c.JSON(http.StatusOK, result)
}

// Status renders the coordinator's current state.
func (h *syncHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.coordinator.Status())
}

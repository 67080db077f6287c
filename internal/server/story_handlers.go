package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/model"
	"github.com/wisangg/storysync/internal/sserror"
	"github.com/wisangg/storysync/internal/worker"
)

type storyHandler struct {
	db     database.Client
	worker *worker.Worker
}

type storyParams struct {
	Description string   `json:"description"`
	Photo       []byte   `json:"photo"` // base64 in transit
	PhotoName   string   `json:"photoName"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Token       string   `json:"token"`
}

// Queue captures a story submission that could not be sent right away and
// arms the background sync trigger.
func (h *storyHandler) Queue(c echo.Context) error {
	var params storyParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse story").SetInternal(err)
	}
	if params.Token == "" {
		return sserror.NotAuthenticated("a story cannot be queued without a credential")
	}

	story := &model.OfflineStory{
		Description: params.Description,
		Photo:       params.Photo,
		PhotoName:   params.PhotoName,
		Lat:         params.Lat,
		Lon:         params.Lon,
		Token:       params.Token,
	}
	if err := h.db.AddOfflineStory(story); err != nil {
		return err
	}

	// Best-effort: the online-transition listener remains the fallback path.
	if h.worker != nil {
		h.worker.RequestSync(worker.SyncTag)
	}

	return c.JSON(http.StatusAccepted, story)
}

// Pending renders the submissions still waiting for upload.
func (h *storyHandler) Pending(c echo.Context) error {
	stories, err := h.db.UnsyncedStories()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stories)
}

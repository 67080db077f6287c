package server

import (
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/model"
	"github.com/wisangg/storysync/internal/sserror"
)

type favoriteHandler struct {
	db database.Client
}

type favoriteParams struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PhotoURL    string   `json:"photoUrl"`
	CreatedAt   string   `json:"createdAt"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

// List renders the favorites, filtered by ?q= or ordered by ?sort=&order=.
func (h *favoriteHandler) List(c echo.Context) error {
	if query := c.QueryParam("q"); query != "" {
		favorites, err := h.db.SearchFavorites(query)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, favorites)
	}

	sort := c.QueryParam("sort")
	if sort == "" {
		sort = "createdAt"
	}
	order := c.QueryParam("order")
	if order == "" {
		order = "desc"
	}

	favorites, err := h.db.SortFavorites(sort, order)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, favorites)
}

// Create stores a copy of the displayed story as a favorite.
func (h *favoriteHandler) Create(c echo.Context) error {
	var params favoriteParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse favorite").SetInternal(err)
	}
	if params.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing story id")
	}

	var createdAt time.Time
	if params.CreatedAt != "" {
		var err error
		if createdAt, err = dateparse.ParseAny(params.CreatedAt); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "could not parse createdAt").SetInternal(err)
		}
	}

	favorite := &model.Favorite{
		ID:          params.ID,
		Name:        params.Name,
		Description: params.Description,
		PhotoURL:    params.PhotoURL,
		CreatedAt:   createdAt.UTC(),
		Lat:         params.Lat,
		Lon:         params.Lon,
	}
	if err := h.db.AddFavorite(favorite); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, favorite)
}

// Show reports whether the story is favorited.
func (h *favoriteHandler) Show(c echo.Context) error {
	ok, err := h.db.IsFavorite(c.Param("id"))
	if err != nil {
		return errors.Wrap(err, "could not check favorite")
	}
	if !ok {
		return sserror.NewWithTagCode(http.StatusNotFound, "", "story is not favorited")
	}
	return c.JSON(http.StatusOK, echo.Map{"favorited": true})
}

// Delete removes the favorite. Deleting an absent id succeeds.
func (h *favoriteHandler) Delete(c echo.Context) error {
	if err := h.db.RemoveFavorite(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

package server_test

import (
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/appleboy/gofight/v2"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/model"
	"github.com/wisangg/storysync/internal/server"
	"github.com/wisangg/storysync/internal/syncer"
	"github.com/wisangg/storysync/pkg/storyapi"
)

type uploaderFunc func(submission storyapi.Submission) error

func (f uploaderFunc) AddStory(submission storyapi.Submission) error {
	return f(submission)
}

func TestRequestHome(t *testing.T) {
	engine, _, r, cleanup := setup(true)
	defer cleanup()

	r.GET("/").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"version":"test"}`, r.Body.String())
	})
}

func TestRequestVersion(t *testing.T) {
	engine, _, r, cleanup := setup(true)
	defer cleanup()

	r.GET("/version").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"version":"test"}`, r.Body.String())
	})
}

func TestRequestStats(t *testing.T) {
	engine, _, r, cleanup := setup(true)
	defer cleanup()

	r.GET("/stats").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"favoritesCount":0,"offlineStoriesCount":0,"unsyncedStoriesCount":0}`, r.Body.String())
	})
}

func TestRequestCreateFavorite(t *testing.T) {
	engine, _, r, cleanup := setup(true)
	defer cleanup()

	payload := gofight.D{
		"id":          "story-1",
		"name":        "George",
		"description": "Trip to the lake",
		"photoUrl":    "http://photos/1.jpg",
		"createdAt":   "2024-03-01T10:00:00.000Z",
	}

	r.POST("/favorites").SetJSON(payload).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)
	})

	// Re-favoriting the same story collides.
	r.POST("/favorites").SetJSON(payload).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusConflict, r.Code)
		assert.Contains(t, r.Body.String(), "duplicate-key")
	})
}

func TestRequestListFavorites(t *testing.T) {
	engine, ctrl, r, cleanup := setup(true)
	defer cleanup()

	createFavorite(ctrl, "story-1", "George", "Trip to the lake")
	createFavorite(ctrl, "story-2", "Anna", "Museum day")

	r.GET("/favorites?q=lake").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Contains(t, r.Body.String(), "story-1")
		assert.NotContains(t, r.Body.String(), "story-2")
	})

	r.GET("/favorites?sort=name&order=asc").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Less(t, strings.Index(r.Body.String(), "story-2"), strings.Index(r.Body.String(), "story-1"))
	})

	r.GET("/favorites?sort=bogus").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})
}

func TestRequestShowFavorite(t *testing.T) {
	engine, ctrl, r, cleanup := setup(true)
	defer cleanup()

	createFavorite(ctrl, "story-1", "George", "Trip to the lake")

	r.GET("/favorites/story-1").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	r.GET("/favorites/story-404").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestDeleteFavorite(t *testing.T) {
	engine, ctrl, r, cleanup := setup(true)
	defer cleanup()

	createFavorite(ctrl, "story-1", "George", "Trip to the lake")

	r.DELETE("/favorites/story-1").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	// Idempotent whatever the id.
	r.DELETE("/favorites/story-1").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})
}

func TestRequestQueueStory(t *testing.T) {
	engine, ctrl, r, cleanup := setup(true)
	defer cleanup()

	payload := gofight.D{
		"description": "Trip to the lake",
		"photo":       base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
		"lat":         -2.5,
		"lon":         118.0,
		"token":       "abc",
	}

	r.POST("/stories").SetJSON(payload).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusAccepted, r.Code)
		assert.Contains(t, r.Body.String(), `"synced":false`)
	})

	r.GET("/stories/pending").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Contains(t, r.Body.String(), "Trip to the lake")
	})

	stats, err := ctrl.Database.Stats()
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.UnsyncedCount)
}

func TestRequestQueueStoryWithoutToken(t *testing.T) {
	engine, _, r, cleanup := setup(true)
	defer cleanup()

	r.POST("/stories").SetJSON(gofight.D{"description": "no token"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.Contains(t, r.Body.String(), "not-authenticated")
	})
}

func TestRequestSync(t *testing.T) {
	engine, _, r, cleanup := setup(true)
	defer cleanup()

	r.POST("/sync").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Contains(t, r.Body.String(), `"success":true`)
	})

	r.GET("/sync/status").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"isOnline":true,"syncInProgress":false}`, r.Body.String())
	})
}

func TestRequestSyncOffline(t *testing.T) {
	engine, _, r, cleanup := setup(false)
	defer cleanup()

	r.POST("/sync").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusServiceUnavailable, r.Code)
		assert.Contains(t, r.Body.String(), "device is offline")
	})
}

func createFavorite(ctrl server.Controller, id, name, description string) {
	err := ctrl.Database.AddFavorite(&model.Favorite{
		ID:          id,
		Name:        name,
		Description: description,
		PhotoURL:    "http://photos/" + id + ".jpg",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		panic(err)
	}
}

func setup(online bool) (engine *echo.Echo, ctrl server.Controller, r *gofight.RequestConfig, cleanup func()) {
	tmpfile, err := os.CreateTemp("", "storysync.*.db")
	if err != nil {
		panic(err)
	}
	filename := tmpfile.Name()
	tmpfile.Close()

	db, err := database.StormOpen(filename)
	if err != nil {
		panic(err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	uploader := uploaderFunc(func(storyapi.Submission) error { return nil })
	coordinator := syncer.NewCoordinator(db, uploader, func() bool { return online }, syncer.NewBus(logger), logger)

	ctrl = server.Controller{
		Version:     "test",
		Database:    db,
		Coordinator: coordinator,
	}
	engine = server.EchoEngine(ctrl)

	return engine, ctrl, gofight.New(), func() {
		db.Close()
		os.RemoveAll(filename)
	}
}

package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/server/middlewares"
	"github.com/wisangg/storysync/internal/syncer"
	"github.com/wisangg/storysync/internal/worker"
)

// A Controller is an Inversion Of Control pattern used to init the server package.
type Controller struct {
	Version     string
	Database    database.Client
	Coordinator *syncer.Coordinator
	Worker      *worker.Worker
}

// EchoEngine instantiates the control surface consumed by the UI.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	router := engine.Group("")

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	router.GET("/stats", func(c echo.Context) error {
		stats, err := ctrl.Database.Stats()
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, stats)
	})

	//
	// favorite handlers
	//
	favorites := &favoriteHandler{db: ctrl.Database}
	router.GET("/favorites", favorites.List)
	router.POST("/favorites", favorites.Create)
	router.GET("/favorites/:id", favorites.Show)
	router.DELETE("/favorites/:id", favorites.Delete)

	//
	// story submission handlers
	//
	stories := &storyHandler{db: ctrl.Database, worker: ctrl.Worker}
	router.POST("/stories", stories.Queue)
	router.GET("/stories/pending", stories.Pending)

	//
	// sync handlers
	//
	syn := &syncHandler{coordinator: ctrl.Coordinator}
	router.POST("/sync", syn.Trigger)
	router.GET("/sync/status", syn.Status)

	return engine
}

// PrintRoutes prints the Echo engine exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

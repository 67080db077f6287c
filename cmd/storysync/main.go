package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/wisangg/storysync/internal/cache"
	"github.com/wisangg/storysync/internal/client"
	"github.com/wisangg/storysync/internal/connectivity"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/server"
	"github.com/wisangg/storysync/internal/syncer"
	"github.com/wisangg/storysync/internal/worker"
	"github.com/wisangg/storysync/pkg/storyapi"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	dbname    = "storysync.db"
	cachename = "storycache.db"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "storysync",
		Short:   "Offline persistence and sync agent for the story app",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	agentCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(agentCmd)

	syncCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(syncCmd)

	statusCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(statusCmd)

	c.AddCommand(loginCmd)
	c.AddCommand(logoutCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func konfiguration() (*koanf.Koanf, error) {
	konf := koanf.New(".")
	if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
		return nil, err
	}
	return konf, nil
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func cachenameWithPath(path string) string {
	if len(path) == 0 {
		return cachename
	}
	return filepath.Join(path, cachename)
}

func newLogger(konf *koanf.Koanf) *logrus.Logger {
	logger := logrus.New()
	if filename := konf.String("log.file"); filename != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    konf.Int("log.max_size"),
			MaxBackups: konf.Int("log.max_backups"),
			Compress:   true,
		})
	}
	if level, err := logrus.ParseLevel(konf.String("log.level")); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := konfiguration()
			if err != nil {
				return err
			}

			return database.StormInit(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := konfiguration()
			if err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	loginCmd = &coral.Command{
		Use:   "login",
		Short: "Login to the story API server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			return client.Login()
		},
	}

	//
	logoutCmd = &coral.Command{
		Use:   "logout",
		Short: "Discard the stored story API credentials",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			return client.Logout()
		},
	}

	//
	syncCmd = &coral.Command{
		Use:   "sync",
		Short: "Upload the queued stories once and exit",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := konfiguration()
			if err != nil {
				return err
			}

			creds, err := client.Load()
			if err != nil {
				return errors.Wrap(err, "could not load credentials")
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			api, err := storyapi.NewDefaultClient(creds.Endpoint)
			if err != nil {
				return errors.Wrap(err, "could not reach story API endpoint")
			}
			api.SetBearerToken(creds.BearerToken)

			logger := newLogger(konf)
			coordinator := syncer.NewCoordinator(db, api,
				func() bool { return true }, syncer.NewBus(logger), logger)

			result := coordinator.SyncOfflineStories()
			payload, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))

			if !result.Success {
				return errors.New(result.Message)
			}
			return nil
		},
	}

	//
	statusCmd = &coral.Command{
		Use:   "status",
		Short: "Show the local store counters",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := konfiguration()
			if err != nil {
				return err
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			stats, err := db.Stats()
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))

			if creds, err := client.Load(); err == nil && creds.BearerToken != "" {
				if at, err := storyapi.TokenExpiresAt(creds.BearerToken); err == nil {
					state := "valid until"
					if storyapi.TokenExpired(creds.BearerToken) {
						state = "expired since"
					}
					fmt.Printf("Bearer token %s %s\n", state, at.Format(time.RFC1123))
				}
			}
			return nil
		},
	}

	//
	//
	agentCmd = &coral.Command{
		Use:   "agent",
		Short: "Start the offline persistence and sync agent",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := konfiguration()
			if err != nil {
				return err
			}

			endpoint := konf.String("endpoint")
			if endpoint == "" {
				return errors.New("endpoint not found")
			}
			api, err := url.Parse(endpoint)
			if err != nil {
				return errors.Wrap(err, "invalid endpoint")
			}

			logger := newLogger(konf)

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			store, err := cache.Open(cachenameWithPath(konf.String("cache_path")))
			if err != nil {
				return errors.Wrap(err, "could not open cache")
			}
			defer store.Close()
			if err := store.Activate(); err != nil {
				return errors.Wrap(err, "could not activate cache partitions")
			}

			transport := cache.NewTransport(nil, store, api.Host, logger)
			remote, err := storyapi.NewClient(&http.Client{
				Transport: transport,
				Timeout:   30 * time.Second,
			}, endpoint)
			if err != nil {
				return errors.Wrap(err, "could not reach story API endpoint")
			}

			if creds, err := client.Load(); err == nil {
				remote.SetBearerToken(creds.BearerToken)
				if storyapi.TokenExpired(creds.BearerToken) {
					logger.Warn("stored bearer token is expired, queued uploads will stay pending")
				}
			} else {
				logger.WithError(err).Warn("no usable credentials, queued uploads will stay pending")
			}

			if urls := konf.Strings("precache"); len(urls) > 0 {
				go transport.Precache(urls)
			}

			interval := konf.Duration("probe.interval")
			if interval <= 0 {
				interval = 30 * time.Second
			}
			settle := konf.Duration("probe.settle")
			if settle <= 0 {
				settle = 2 * time.Second
			}

			bus := syncer.NewBus(logger)
			watcher := connectivity.NewWatcher(
				connectivity.HTTPProber(endpoint, 5*time.Second),
				interval, settle, bus, logger)

			coordinator := syncer.NewCoordinator(db, remote, watcher.Online, bus, logger)
			wkr := worker.New(db, remote, watcher.Online, bus, logger)

			// Regained connectivity drains the queue without waiting for the UI.
			watcher.OnTransition(func(online bool) {
				if online {
					wkr.RequestSync(worker.SyncTag)
				}
			})

			// The watcher goes first so the worker's startup drain sees the
			// probed baseline, not a default offline state.
			watcher.Start()
			defer watcher.Stop()
			wkr.Start()
			defer wkr.Stop()

			engine := server.EchoEngine(server.Controller{
				Version:     version,
				Database:    db,
				Coordinator: coordinator,
				Worker:      wkr,
			})
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			log.Printf("Agent listening on %s\n", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)

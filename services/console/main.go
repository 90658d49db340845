package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/config"
	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/handler"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/startup"
	"github.com/hospitalbooking/internal/ws"
)

func main() {
	logger.SetPrefix("console")
	dev := flag.Bool("dev", false, "in-memory session store (no Redis required)")
	devPG := flag.Bool("pg", false, "with -dev: session store in embedded PostgreSQL instead of memory")
	flag.Parse()

	logger.Info("starting console service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	if *dev {
		cfg.Store = config.StoreMemory
		if *devPG {
			pg := startup.EmbeddedPostgres{
				Port:     5433,
				User:     "console",
				Password: "console_secret",
				Database: "console",
				DataDir:  filepath.Join(".", ".pgdata"),
			}
			db, err := pg.Start()
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := db.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
			cfg.Store = config.StorePostgres
			cfg.Database.URL = pg.URL()
		}
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 90*time.Second)
	store, closeStore, err := startup.OpenStore(openCtx, cfg, "")
	openCancel()
	if err != nil {
		logger.Errorf("session store: %v", err)
		closeStore()
		os.Exit(1)
	}
	defer closeStore()

	table := guard.DefaultTable()
	api := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(store, table, cfg.MaxWSConnections)
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	router := handler.NewRouter(handler.Deps{
		Store:          store,
		API:            api,
		Hub:            hub,
		Table:          table,
		APIBaseURL:     cfg.API.BaseURL,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ProfileCookie:  cfg.ProfileCookie,
		CookieSecure:   cfg.CookieSecure,
		AccessLog:      true,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s (store=%s, api=%s)", cfg.ServerAddr, cfg.Store, cfg.API.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"libris.org/internal/accounts"
	"libris.org/internal/auth"
	"libris.org/internal/catalog"
	"libris.org/internal/config"
	"libris.org/internal/httpapi"
	"libris.org/internal/obs"
	"libris.org/internal/store/pg"
	"libris.org/internal/stream"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		db         *sql.DB
		accountSvc accounts.Service
		catalogSvc catalog.Service
	)
	if cfg.PostgresDSN != "" {
		db, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		accountSvc = pg.NewAccounts(db, cfg.StorageTimeout)
		catalogSvc = pg.NewCatalog(db, cfg.StorageTimeout)
	} else {
		accountSvc = accounts.NewInMemory()
		catalogSvc = catalog.NewInMemory()
	}

	authn, err := auth.NewAuthenticator(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, cfg, authn,
		accountSvc, catalogSvc, stream.New())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting libris-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

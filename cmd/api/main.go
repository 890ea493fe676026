package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turfwar.org/internal/auth"
	"turfwar.org/internal/authz"
	"turfwar.org/internal/httpapi"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/obs"
	"turfwar.org/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("TURFWAR_COMMIT"))

	dsn := os.Getenv("TURFWAR_PG_DSN")
	if dsn == "" {
		log.Fatal("TURFWAR_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	var blacklist *auth.Blacklist
	if addr := os.Getenv("TURFWAR_REDIS_ADDR"); addr != "" {
		blacklist, err = auth.NewBlacklist(addr)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer blacklist.Close()
	} else {
		log.Print("TURFWAR_REDIS_ADDR not set; logout token revocation disabled")
	}

	identitySvc := identity.NewService(store.Users())

	// First registered account becomes the console admin when none exists.
	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	promoted, err := identitySvc.EnsureAdmin(bootCtx)
	cancel()
	if err != nil {
		log.Fatalf("ensure admin: %v", err)
	}
	if promoted != nil {
		log.Printf("promoted %s to admin", promoted.Username)
	}

	api := httpapi.New(httpapi.Config{
		Store:      store,
		Identity:   identitySvc,
		Authz:      authz.New(store.Features()),
		Blacklist:  blacklist,
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
	})

	addr := os.Getenv("TURFWAR_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting turfwar-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rastersalvage/internal/app"
	"rastersalvage/internal/auth"
	"rastersalvage/internal/config"
	"rastersalvage/internal/httpapi"
	"rastersalvage/internal/httpapi/handlers"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.AdminToken == "" {
		log.Fatalf("ADMIN_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log.Default())
	if err != nil {
		log.Fatalf("init pipeline: %v", err)
	}
	defer a.Close()

	var runs handlers.RunJournal
	if a.Journal != nil {
		runs = a.Journal
	} else {
		log.Printf("run journal disabled (DATABASE_URL not set)")
	}

	batches := httpapi.NewBatchTrigger(ctx, a.Batch, log.Default())
	authn := auth.NewAuthenticator(cfg.AdminToken)

	api := httpapi.New(cfg, a.Orchestrator, runs, batches, authn)
	echoServer := api.NewEcho()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      echoServer,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
		os.Exit(1)
	}
	batches.Wait()
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quorum/api/internal/app"
	"quorum/api/internal/auth"
	"quorum/api/internal/config"
	"quorum/api/internal/docstore"
	"quorum/api/internal/qa"
	"quorum/api/internal/search"
	"quorum/api/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Document store: Postgres when DATABASE_URL is set, Redis otherwise.
	var docs docstore.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		log.Printf("Using PostgreSQL document store")
		db, err := docstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		if err := docstore.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("schema setup failed: %v", err)
		}
		docs = docstore.NewPostgresStore(db)
	} else {
		log.Printf("Using Redis document store")
		redisDocs, err := docstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		docs = redisDocs
	}
	defer docs.Close()

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis session store failed: %v", err)
	}
	defer sessions.Close()

	provider := auth.New(docs, sessions, cfg.SessionTTL, cfg.SessionTokenFile)
	sessionStore := qa.NewSessionStore(provider, docs)
	defer sessionStore.Close()
	provider.Resume(ctx)

	remote := qa.NewDocRemote(docs)
	questions := qa.NewQuestionStore(sessionStore, remote, cfg.FeedPageSize)
	answers := qa.NewAnswerStore(sessionStore, remote)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, search.NewScan(docs, qa.QuestionsCollection))
	defer searchService.Close()
	searchService.Backfill(ctx, docs, qa.QuestionsCollection)

	service := app.NewService(sessionStore, questions, answers, searchService, docs)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Quorum API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

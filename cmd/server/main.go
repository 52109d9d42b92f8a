// Command server runs the vector database's HTTP API (spec §6): it wires
// the store, lifecycle manager, embedding client, and persistence sink into
// an App, loads any persisted libraries from DATA_DIR, and serves the REST
// surface until an interrupt or SIGTERM asks it to shut down gracefully —
// the same run/signal/shutdown shape as the teacher's console-mode startup
// (askflow/main.go's runAsConsoleApp), simplified to this system's single
// HTTP surface.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vectordb/internal/config"
	"vectordb/internal/embedding"
	"vectordb/internal/errlog"
	"vectordb/internal/handler"
	"vectordb/internal/lifecycle"
	"vectordb/internal/persistence"
	"vectordb/internal/router"
	"vectordb/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	if err := errlog.Init(); err != nil {
		log.Printf("warning: error log unavailable: %v", err)
	}
	defer errlog.Close()

	sink, err := persistence.New(cfg.DataDir)
	if err != nil {
		return err
	}

	st := store.New()
	loadPersisted(st, sink, cfg)

	embedder := embedding.NewHTTPClient(embedding.Config{
		Endpoint:    cfg.EmbeddingEndpoint,
		APIKey:      cfg.EmbeddingAPIKey,
		Model:       cfg.EmbeddingModel,
		BatchSize:   cfg.EmbeddingBatchSize,
		Concurrency: cfg.EmbeddingConcurrency,
		Timeout:     cfg.EmbeddingTimeout,
	})

	lm := lifecycle.New(st, embedder)
	st.SetInvalidationSink(lm)

	app := handler.NewApp(st, lm, embedder, sink, cfg)
	mux := router.New(app)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("vectordb listening on :%s (data dir %q)", cfg.Port, cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		close(errCh)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		log.Println("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("server stopped")
	return nil
}

// loadPersisted restores every library_*.json snapshot from DATA_DIR, plus
// the bundled seed library when TESTING_DATA=true (spec §6). Embeddings are
// never persisted, so every restored library starts idle — a subsequent
// index request re-embeds from text (spec §8 scenario 6).
func loadPersisted(st *store.Store, sink *persistence.Sink, cfg config.Config) {
	snapshots, err := sink.LoadAll()
	if err != nil {
		log.Printf("warning: loading %s: %v", cfg.DataDir, err)
	}
	for _, snap := range snapshots {
		persistence.Restore(st, snap)
	}
	log.Printf("loaded %d libraries from %s", len(snapshots), cfg.DataDir)

	if cfg.TestingData {
		persistence.Restore(st, persistence.Seed())
		log.Println("loaded bundled seed library (TESTING_DATA=true)")
	}
}

// minutesapi/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"minutesapi/api"
	"minutesapi/audio"
	"minutesapi/config"
	"minutesapi/export"
	"minutesapi/job"
	"minutesapi/minutes"
	"minutesapi/pipeline"
	"minutesapi/transcribe"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Probe stage adapters up front; a missing binary or model is a
	// startup failure, never a per-job error.
	converter, err := audio.NewConverter(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize audio converter: %v", err)
	}

	transcriber, err := transcribe.NewTranscriber(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize transcriber: %v", err)
	}

	summarizer, err := minutes.NewSummarizer()
	if err != nil {
		log.Fatalf("Failed to initialize summarizer: %v", err)
	}

	exporters := []pipeline.Exporter{export.Text{}, export.Word{}, export.PDF{}}

	// 3. Wire the job store, pipeline runner, and scheduler
	store := job.NewMemoryStore()
	runner := pipeline.NewRunner(cfg, store, converter, transcriber, summarizer, exporters)
	scheduler, err := job.NewScheduler(cfg, store, runner)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// 4. Set up router and server
	router := api.SetupRouter(scheduler, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	// Warm the transcription model so the first job skips the cold start.
	go func() {
		if err := transcriber.Preload(ctx); err != nil {
			log.Printf("Model preload failed: %v", err)
		}
	}()

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"tubedeck/backend"
	"tubedeck/internal/api"
)

func main() {
	log.Println("TubeDeck Server starting...")

	// Load config (env vars override file config)
	config, err := backend.LoadConfigWithEnv()
	if err != nil {
		log.Printf("Warning: Could not load config: %v, using defaults", err)
		config = backend.GetDefaultConfig()
	}

	backend.InitLogger(config.LogLevel)

	// Ensure working directories exist
	if err := os.MkdirAll(config.TempDir, 0755); err != nil {
		log.Printf("Warning: Could not create temp directory: %v", err)
	}
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		log.Printf("Warning: Could not create data directory: %v", err)
	}

	// State store backs the history ledger and drive config
	store := backend.NewFileStore(config.DataDir)
	history := backend.NewHistory(store)

	// yt-dlp services
	ytdlp := backend.NewYtdlp(config)
	analyzer := backend.NewAnalyzer(ytdlp)
	downloader := backend.NewDownloader(ytdlp, config.TempDir)
	playlists := backend.NewPlaylistAnalyzer(ytdlp)
	streamer := backend.NewPlaylistStreamer(ytdlp, config.TempDir)

	// Google Drive client
	drive, err := backend.NewDriveClient(config, store)
	if err != nil {
		log.Fatalf("Could not create Drive client: %v", err)
	}

	// Create and configure server
	server := api.NewServer(config, analyzer, downloader, playlists, streamer, drive, history)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		server.Shutdown()
	}()

	port := config.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := server.Listen(":" + port); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

package api

import (
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"tubedeck/backend"
)

// Server represents the HTTP API server
type Server struct {
	app        *fiber.App
	config     *backend.Config
	analyzer   *backend.Analyzer
	downloader *backend.Downloader
	playlists  *backend.PlaylistAnalyzer
	streamer   *backend.PlaylistStreamer
	drive      *backend.DriveClient
	history    *backend.History
	wsHub      *WebSocketHub
}

// NewServer creates a new API server instance
func NewServer(
	config *backend.Config,
	analyzer *backend.Analyzer,
	downloader *backend.Downloader,
	playlists *backend.PlaylistAnalyzer,
	streamer *backend.PlaylistStreamer,
	drive *backend.DriveClient,
	history *backend.History,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "TubeDeck Server",
		ServerHeader: "TubeDeck",
		BodyLimit:    200 * 1024 * 1024, // drive uploads carry whole media files
	})

	// Create WebSocket hub
	wsHub := NewWebSocketHub()
	go wsHub.Run()

	server := &Server{
		app:        app,
		config:     config,
		analyzer:   analyzer,
		downloader: downloader,
		playlists:  playlists,
		streamer:   streamer,
		drive:      drive,
		history:    history,
		wsHub:      wsHub,
	}

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.app.Get("/api/health", s.handleHealth)

	// API routes
	api := s.app.Group("/api")

	// Media routes
	api.Post("/analyze", s.handleAnalyze)
	api.Post("/download", s.handleDownload)
	api.Post("/playlist", s.handlePlaylist)
	api.Post("/playlist-download", s.handlePlaylistDownload)

	// Google Drive routes
	api.Get("/drive/auth", s.handleDriveAuthURL)
	api.Post("/drive/auth", s.handleDriveAuth)
	api.Post("/drive/upload", s.handleDriveUpload)
	api.Get("/drive/status", s.handleDriveStatus)
	api.Post("/drive/disconnect", s.handleDriveDisconnect)
	api.Get("/drive/config", s.handleGetDriveConfig)
	api.Post("/drive/config", s.handleSaveDriveConfig)

	// History routes
	api.Get("/history", s.handleGetHistory)
	api.Post("/history", s.handleAddHistory)
	api.Get("/history/stats", s.handleGetHistoryStats)
	api.Post("/history/clear", s.handleClearHistory)
	api.Patch("/history/:id", s.handleUpdateHistory)
	api.Delete("/history/:id", s.handleDeleteHistoryEntry)

	// Version
	api.Get("/version", s.handleGetVersion)

	// WebSocket endpoint
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

// Listen starts the HTTP server
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.wsHub.Close()
	return s.app.Shutdown()
}

// BroadcastEvent sends a progress event to all connected WebSocket clients
func (s *Server) BroadcastEvent(event any) {
	s.wsHub.Broadcast(event)
}

// WebSocketHub manages WebSocket connections
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run starts the WebSocket hub
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", len(h.clients))
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", len(h.clients))
		case message := <-h.broadcast:
			var dead []*websocket.Conn
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteJSON(message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					dead = append(dead, conn)
				}
			}
			h.mu.RUnlock()

			// drop failed connections here; sending to h.unregister from
			// this goroutine would block against our own select
			h.mu.Lock()
			for _, conn := range dead {
				if _, ok := h.clients[conn]; ok {
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("WebSocket broadcast channel full, dropping message")
	}
}

// Close shuts down the hub
func (h *WebSocketHub) Close() {
	close(h.done)
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.mu.Unlock()
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *websocket.Conn) {
	s.wsHub.register <- c
	defer func() {
		s.wsHub.unregister <- c
	}()

	for {
		_, _, err := c.ReadMessage()
		if err != nil {
			break
		}
		// We don't process incoming messages, just keep connection alive
	}
}

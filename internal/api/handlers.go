package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"tubedeck/backend"
)

const AppVersion = "1.0.0"

// errorResponse converts any failure into the {error} envelope, logging the
// full detail server-side and sending only the user-safe message.
func errorResponse(c *fiber.Ctx, err error) error {
	ce := backend.Classify(err)
	backend.Logger.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(ce.StatusCode()).JSON(fiber.Map{"error": ce.UserMessage()})
}

// Health check
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": AppVersion,
	})
}

func (s *Server) handleGetVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": AppVersion})
}

// ============== Media Handlers ==============

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := s.analyzer.Analyze(c.Context(), body.URL)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	var req backend.DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := s.downloader.Download(c.Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Set("Content-Type", result.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Set("Content-Length", fmt.Sprint(len(result.Data)))
	return c.Send(result.Data)
}

func (s *Server) handlePlaylist(c *fiber.Ctx) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	info, err := s.playlists.Analyze(c.Context(), body.URL)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(info)
}

// handlePlaylistDownload streams download progress as server-sent events.
// The response stays open until the subprocess terminates; when the client
// goes away the write fails, the context is cancelled and the subprocess
// killed.
func (s *Server) handlePlaylistDownload(c *fiber.Ctx) error {
	var req backend.PlaylistDownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.PlaylistID == "" || req.Format == "" || req.Quality == "" {
		return c.Status(400).JSON(fiber.Map{"error": "playlistId, format and quality are required"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	streamer := s.streamer
	hub := s.wsHub

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		streamer.Stream(ctx, req, func(event any) {
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}
			hub.Broadcast(event)

			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				cancel()
				return
			}
			if err := w.Flush(); err != nil {
				cancel()
			}
		})
	}))

	return nil
}

// ============== Google Drive Handlers ==============

func (s *Server) handleDriveAuthURL(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authUrl": s.drive.AuthURL()})
}

func (s *Server) handleDriveAuth(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}
	if body.Code == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Authorization code is required"})
	}

	if err := s.drive.ExchangeCode(c.Context(), body.Code); err != nil {
		ce := backend.Classify(err)
		backend.Logger.Error("drive auth failed", "error", err)
		return c.Status(ce.StatusCode()).JSON(fiber.Map{"success": false, "error": ce.UserMessage()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleDriveUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "No file provided"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Could not read file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Could not read file"})
	}

	fileName := c.FormValue("fileName")
	if fileName == "" {
		fileName = fileHeader.Filename
	}
	mimeType := c.FormValue("mimeType")
	if mimeType == "" {
		mimeType = fileHeader.Header.Get("Content-Type")
	}

	result := s.drive.Upload(c.Context(), data, fileName, mimeType, &backend.UploadMeta{
		Title:  c.FormValue("title"),
		Author: c.FormValue("author"),
		Type:   c.FormValue("type"),
	})

	return c.JSON(result)
}

func (s *Server) handleDriveStatus(c *fiber.Ctx) error {
	return c.JSON(s.drive.TestConnection(c.Context()))
}

func (s *Server) handleDriveDisconnect(c *fiber.Ctx) error {
	s.drive.Disconnect()
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleGetDriveConfig(c *fiber.Ctx) error {
	cfg := s.drive.Config()
	// Tokens stay server-side.
	cfg.AccessToken = ""
	cfg.RefreshToken = ""
	return c.JSON(cfg)
}

func (s *Server) handleSaveDriveConfig(c *fiber.Ctx) error {
	var body backend.DriveConfig
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	cfg := s.drive.SaveConfig(body)
	cfg.AccessToken = ""
	cfg.RefreshToken = ""
	return c.JSON(cfg)
}

// ============== History Handlers ==============

func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	return c.JSON(s.history.GetAll())
}

func (s *Server) handleAddHistory(c *fiber.Ctx) error {
	var record backend.HistoryRecord
	if err := c.BodyParser(&record); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	added, err := s.history.Add(record)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(added)
}

func (s *Server) handleUpdateHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	var body struct {
		Status string `json:"status"`
		Size   string `json:"size"`
		Error  string `json:"error"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	record, err := s.history.Update(id, func(r *backend.HistoryRecord) {
		if body.Status != "" {
			r.Status = body.Status
		}
		if body.Size != "" {
			r.Size = body.Size
		}
		if body.Error != "" {
			r.Error = body.Error
		}
	})
	if err != nil {
		if record == nil && s.history.GetByID(id) == nil {
			return c.Status(404).JSON(fiber.Map{"error": "Record not found"})
		}
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(record)
}

func (s *Server) handleDeleteHistoryEntry(c *fiber.Ctx) error {
	if err := s.history.Delete(c.Params("id")); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleClearHistory(c *fiber.Ctx) error {
	if err := s.history.Clear(); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleGetHistoryStats(c *fiber.Ctx) error {
	return c.JSON(s.history.GetStats())
}

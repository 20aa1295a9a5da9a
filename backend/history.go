package backend

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// historyKey is the store key for the transfer ledger. The name is kept from
// the original browser storage so exported state stays readable.
const historyKey = "youtube-downloader-history"

// maxHistoryItems caps the ledger at the most recent entries.
const maxHistoryItems = 100

// History statuses. Transitions are monotonic: in-progress may move to
// completed or failed, terminal statuses never change again.
const (
	HistoryInProgress = "in-progress"
	HistoryCompleted  = "completed"
	HistoryFailed     = "failed"
)

// PlaylistHistoryInfo captures playlist-level counters on a ledger record.
type PlaylistHistoryInfo struct {
	PlaylistTitle   string `json:"playlistTitle"`
	VideoCount      int    `json:"videoCount"`
	DownloadedCount int    `json:"downloadedCount"`
}

// HistoryRecord is one transfer in the ledger.
type HistoryRecord struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	URL          string               `json:"url"`
	Type         string               `json:"type"` // video, audio, subtitle, playlist
	Format       string               `json:"format"`
	Quality      string               `json:"quality"`
	Size         string               `json:"size,omitempty"`
	Thumbnail    string               `json:"thumbnail,omitempty"`
	Author       string               `json:"author,omitempty"`
	Duration     string               `json:"duration,omitempty"`
	DownloadDate time.Time            `json:"downloadDate"`
	Status       string               `json:"status"`
	Error        string               `json:"error,omitempty"`
	PlaylistInfo *PlaylistHistoryInfo `json:"playlistInfo,omitempty"`
}

// History manages the capped, newest-first transfer ledger.
type History struct {
	store   Store
	entries []HistoryRecord
	mu      sync.RWMutex
}

// NewHistory creates a History backed by the given store, loading any
// previously persisted entries.
func NewHistory(store Store) *History {
	h := &History{store: store}
	if err := store.Load(historyKey, &h.entries); err != nil && !os.IsNotExist(err) {
		Logger.Warn("could not load history, starting empty", "error", err)
		h.entries = nil
	}
	return h
}

// save persists the ledger. Callers must hold the write lock.
func (h *History) save() error {
	return h.store.Save(historyKey, h.entries)
}

// Add appends a record to the front of the ledger, trimming to the cap.
// A missing id or date is filled in.
func (h *History) Add(record HistoryRecord) (HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.DownloadDate.IsZero() {
		record.DownloadDate = time.Now()
	}
	if record.Status == "" {
		record.Status = HistoryInProgress
	}

	h.entries = append([]HistoryRecord{record}, h.entries...)
	if len(h.entries) > maxHistoryItems {
		h.entries = h.entries[:maxHistoryItems]
	}

	return record, h.save()
}

// Update applies changes to the record with the given id. Status changes
// are accepted only in the forward direction; once a record is completed or
// failed its status is frozen.
func (h *History) Update(id string, updater func(*HistoryRecord)) (*HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		if h.entries[i].ID != id {
			continue
		}

		before := h.entries[i].Status
		updater(&h.entries[i])

		if before != HistoryInProgress && h.entries[i].Status != before {
			h.entries[i].Status = before
			return nil, fmt.Errorf("record %s is %s and cannot change status", id, before)
		}

		record := h.entries[i]
		return &record, h.save()
	}

	return nil, fmt.Errorf("record not found: %s", id)
}

// MarkCompleted transitions a record to completed, recording the final size.
func (h *History) MarkCompleted(id, size string) error {
	_, err := h.Update(id, func(r *HistoryRecord) {
		r.Status = HistoryCompleted
		if size != "" {
			r.Size = size
		}
	})
	return err
}

// MarkFailed transitions a record to failed with the given user-facing error.
func (h *History) MarkFailed(id, errMsg string) error {
	_, err := h.Update(id, func(r *HistoryRecord) {
		r.Status = HistoryFailed
		r.Error = errMsg
	})
	return err
}

// GetAll returns a copy of the ledger, newest first.
func (h *History) GetAll() []HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]HistoryRecord, len(h.entries))
	copy(result, h.entries)
	return result
}

// GetByID returns a single record by id.
func (h *History) GetByID(id string) *HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, entry := range h.entries {
		if entry.ID == id {
			record := entry
			return &record
		}
	}
	return nil
}

// Delete removes a record by id.
func (h *History) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, entry := range h.entries {
		if entry.ID == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return h.save()
		}
	}
	return nil
}

// Clear removes all records.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	return h.store.Delete(historyKey)
}

// HistoryStats contains aggregated ledger statistics.
type HistoryStats struct {
	Total              int    `json:"total"`
	Completed          int    `json:"completed"`
	Failed             int    `json:"failed"`
	TotalSizeBytes     int64  `json:"totalSizeBytes"`
	TotalSizeFormatted string `json:"totalSizeFormatted"`
}

var sizeTextRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(KB|MB|GB|KiB|MiB|GiB)`)

// GetStats aggregates ledger counters. Sizes are stored as rendered text
// ("~12.3MB"), so the byte total is parsed back out of them.
func (h *History) GetStats() HistoryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HistoryStats{Total: len(h.entries)}
	for _, entry := range h.entries {
		switch entry.Status {
		case HistoryCompleted:
			stats.Completed++
			stats.TotalSizeBytes += parseSizeText(entry.Size)
		case HistoryFailed:
			stats.Failed++
		}
	}
	stats.TotalSizeFormatted = FormatBytes(stats.TotalSizeBytes)
	return stats
}

func parseSizeText(size string) int64 {
	m := sizeTextRegex.FindStringSubmatch(size)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	switch strings.ToLower(m[2]) {
	case "kb", "kib":
		value *= 1024
	case "mb", "mib":
		value *= 1024 * 1024
	case "gb", "gib":
		value *= 1024 * 1024 * 1024
	}
	return int64(value)
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

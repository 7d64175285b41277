package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"media-variants/internal/database"
	"media-variants/internal/logging"
	"media-variants/internal/regen"
	"media-variants/internal/uploader"
)

// VariantResponse is one renderable variant of a media record.
type VariantResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// MediaResponse is the public view of a media record. Variants are grouped
// by preset then format, widths ascending, ready for srcset assembly.
type MediaResponse struct {
	ID        string                                  `json:"id"`
	Mime      string                                  `json:"mime"`
	Width     int                                     `json:"width,omitempty"`
	Height    int                                     `json:"height,omitempty"`
	SizeBytes int64                                   `json:"sizeBytes"`
	FocalX    *float64                                `json:"focalX,omitempty"`
	FocalY    *float64                                `json:"focalY,omitempty"`
	BlurHash  string                                  `json:"blurHash,omitempty"`
	Copyright string                                  `json:"copyright,omitempty"`
	CreatedAt string                                  `json:"createdAt"`
	URL       string                                  `json:"url"`
	Variants  map[string]map[string][]VariantResponse `json:"variants,omitempty"`
}

func (h *Handlers) mediaResponse(r *http.Request, m *database.Media) (*MediaResponse, error) {
	resp := &MediaResponse{
		ID:        m.ID,
		Mime:      m.Mime,
		Width:     m.Width,
		Height:    m.Height,
		SizeBytes: m.SizeBytes,
		FocalX:    m.FocalX,
		FocalY:    m.FocalY,
		BlurHash:  m.BlurHash,
		Copyright: m.Copyright,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		URL:       h.resolver.OriginalURL(m),
	}

	vs, err := h.db.VariantsByMedia(r.Context(), m.ID)
	if err != nil {
		return nil, err
	}
	if len(vs) > 0 {
		resp.Variants = make(map[string]map[string][]VariantResponse)
		for _, v := range vs {
			byFormat := resp.Variants[v.Preset]
			if byFormat == nil {
				byFormat = make(map[string][]VariantResponse)
				resp.Variants[v.Preset] = byFormat
			}
			byFormat[v.Format] = append(byFormat[v.Format], VariantResponse{
				Width:  v.Width,
				Height: v.Height,
				URL:    h.resolver.URL(v),
			})
		}
	}
	return resp, nil
}

// Upload accepts a multipart upload under the "file" field and ingests it.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	m, err := h.uploader.Upload(r.Context(), header.Filename, data)
	switch {
	case errors.Is(err, uploader.ErrDuplicate):
		writeJSONError(w, fmt.Sprintf("Duplicate of existing media %s", m.ID), http.StatusConflict)
		return
	case errors.Is(err, uploader.ErrEmptyUpload):
		writeJSONError(w, "Empty upload", http.StatusBadRequest)
		return
	case err != nil:
		logging.Error("Upload failed: %v", err)
		writeJSONError(w, "Upload failed", http.StatusInternalServerError)
		return
	}

	resp, err := h.mediaResponse(r, m)
	if err != nil {
		logging.Error("Failed to build media response: %v", err)
		writeJSONError(w, "Upload stored but response failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, resp)
}

// ListMedia returns the image catalog page by page.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, err := h.db.AllImages(r.Context(), limit, offset)
	if err != nil {
		logging.Error("Failed to list media: %v", err)
		writeJSONError(w, "Failed to list media", http.StatusInternalServerError)
		return
	}

	responses := make([]*MediaResponse, 0, len(items))
	for _, m := range items {
		resp, err := h.mediaResponse(r, m)
		if err != nil {
			logging.Error("Failed to build media response for %s: %v", m.ID, err)
			writeJSONError(w, "Failed to list media", http.StatusInternalServerError)
			return
		}
		responses = append(responses, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"media": responses, "limit": limit, "offset": offset})
}

// GetMedia returns one media record with its variants.
func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMedia(w, r)
	if !ok {
		return
	}

	resp, err := h.mediaResponse(r, m)
	if err != nil {
		logging.Error("Failed to build media response for %s: %v", m.ID, err)
		writeJSONError(w, "Failed to load media", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// DeleteMedia removes a record, its variants, and its original.
func (h *Handlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMedia(w, r)
	if !ok {
		return
	}

	if err := h.orchestrator.Remove(r.Context(), m); err != nil {
		logging.Error("Failed to delete media %s: %v", m.ID, err)
		writeJSONError(w, "Failed to delete media", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "deleted"})
}

// FocalPointRequest carries a focal point update.
type FocalPointRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// UpdateFocalPoint stores a new focal point and dispatches regeneration so
// cover-cropped variants pick it up.
func (h *Handlers) UpdateFocalPoint(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMedia(w, r)
	if !ok {
		return
	}

	var req FocalPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.X == nil || req.Y == nil {
		writeJSONError(w, "Both x and y are required", http.StatusBadRequest)
		return
	}
	if *req.X < 0 || *req.X > 1 || *req.Y < 0 || *req.Y > 1 {
		writeJSONError(w, "Focal point coordinates must be within [0,1]", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateFocalPoint(r.Context(), m.ID, *req.X, *req.Y); err != nil {
		logging.Error("Failed to update focal point for %s: %v", m.ID, err)
		writeJSONError(w, "Failed to update focal point", http.StatusInternalServerError)
		return
	}

	if h.dispatcher != nil && m.IsImage() {
		if err := h.dispatcher.Dispatch(r.Context(), m.ID); err != nil {
			logging.Warn("Regeneration dispatch after focal update for %s failed: %v", m.ID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"status": "ok", "x": *req.X, "y": *req.Y})
}

// Regenerate triggers variant regeneration for a record. The optional
// "preset" query parameter limits the run to one preset.
func (h *Handlers) Regenerate(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMedia(w, r)
	if !ok {
		return
	}

	presetName := r.URL.Query().Get("preset")
	if presetName != "" && !h.registry.Has(presetName) {
		writeJSONError(w, fmt.Sprintf("Unknown preset %q", presetName), http.StatusBadRequest)
		return
	}

	report, err := h.orchestrator.RegenerateMedia(r.Context(), m, regen.Options{Preset: presetName})
	switch {
	case errors.Is(err, regen.ErrInProgress):
		writeJSONError(w, "Regeneration already in progress", http.StatusConflict)
		return
	case err != nil:
		logging.Error("Regeneration for %s failed: %v", m.ID, err)
		writeJSONError(w, "Regeneration failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":        "complete",
		"totalVariants": report.TotalVariants,
		"failed":        report.Failed,
		"thumbnailUrl":  report.ThumbnailURL,
	})
}

// ListPresets returns the active preset configuration.
func (h *Handlers) ListPresets(w http.ResponseWriter, _ *http.Request) {
	type presetResponse struct {
		Name          string   `json:"name"`
		MaxWidth      int      `json:"maxWidth"`
		MaxHeight     int      `json:"maxHeight"`
		Fit           string   `json:"fit"`
		UseFocalPoint bool     `json:"useFocalPoint"`
		Formats       []string `json:"formats"`
		Widths        []int    `json:"widths"`
	}

	presets := h.registry.All()
	responses := make([]presetResponse, 0, len(presets))
	for _, p := range presets {
		responses = append(responses, presetResponse{
			Name:          p.Name,
			MaxWidth:      p.MaxWidth,
			MaxHeight:     p.MaxHeight,
			Fit:           string(p.Fit),
			UseFocalPoint: p.UseFocalPoint,
			Formats:       p.Formats,
			Widths:        p.EffectiveWidths(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"presets": responses})
}

func (h *Handlers) loadMedia(w http.ResponseWriter, r *http.Request) (*database.Media, bool) {
	id := mux.Vars(r)["id"]
	m, err := h.db.MediaByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "Media not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logging.Error("Failed to load media %s: %v", id, err)
		writeJSONError(w, "Failed to load media", http.StatusInternalServerError)
		return nil, false
	}
	return m, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return fallback
	}
	return n
}

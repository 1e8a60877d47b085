package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
)

const (
	uploadField = "file"

	// Room for multipart boundaries and headers on top of the audio itself
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

type intentRequest struct {
	Text string `json:"text"`
}

type resolutionRequest struct {
	Content string `json:"content"`
	Intent  string `json:"intent"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
	Filename      string `json:"filename"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
}

type intentResponse struct {
	Intent  string `json:"intent"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type resolutionResponse struct {
	Resolution string `json:"resolution"`
	Intent     string `json:"intent"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
}

type analyzeResponse struct {
	Transcription string `json:"transcription"`
	Intent        string `json:"intent"`
	Resolution    string `json:"resolution"`
	Filename      string `json:"filename"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Inquiry analyzer API is running",
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	text, err := h.service.Transcribe(r.Context(), data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Transcription: text,
		Filename:      filename,
		Success:       true,
		Message:       "Transcription completed successfully",
	})
}

func (h *Handler) handleRecognizeIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	intent, err := h.service.RecognizeIntent(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, intentResponse{
		Intent:  intent,
		Success: true,
		Message: "Intent recognition completed successfully",
	})
}

func (h *Handler) handleGenerateResolution(w http.ResponseWriter, r *http.Request) {
	var req resolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resolution, err := h.service.GenerateResolution(r.Context(), req.Content, req.Intent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resolutionResponse{
		Resolution: resolution,
		Intent:     req.Intent,
		Success:    true,
		Message:    "Resolution generated successfully",
	})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.Analyze(r.Context(), data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Transcription: result.Transcription,
		Intent:        result.Intent,
		Resolution:    result.Resolution,
		Filename:      filename,
		Success:       true,
		Message:       "Full analysis completed successfully",
	})
}

// readUpload reads the multipart audio file, accepting .mp3 only
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	limit := h.maxUpload
	if limit <= 0 {
		limit = audio.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("upload exceeds %d bytes: %w", limit, audio.ErrPayloadTooLarge)
		}
		return nil, "", badRequest("expected a multipart form with a file field")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, "", badRequest("no file uploaded")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".mp3") {
		return nil, "", badRequest("only MP3 files are supported")
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("upload exceeds %d bytes: %w", limit, audio.ErrPayloadTooLarge)
	}
	return data, header.Filename, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := observability.LoggerFromContext(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")

	writeJSON(w, status, errorResponse{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Package handlers provides HTTP handlers for the DeckVoice API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/export"
	"github.com/deckvoice/deckvoice/internal/observability"
	"github.com/deckvoice/deckvoice/internal/pipeline"
)

// RunHandler handles processing-run requests.
type RunHandler struct {
	logger       *observability.Logger
	service      *pipeline.Service
	exporter     *export.Exporter
	maxUploadLen int64
}

// NewRunHandler creates a new run handler. maxUploadLen bounds multipart
// upload memory.
func NewRunHandler(logger *observability.Logger, service *pipeline.Service, exporter *export.Exporter, maxUploadLen int64) *RunHandler {
	return &RunHandler{
		logger:       logger,
		service:      service,
		exporter:     exporter,
		maxUploadLen: maxUploadLen,
	}
}

// SlideDTO is the API shape of one slide.
type SlideDTO struct {
	Index              int    `json:"index"`
	RawText            string `json:"raw_text"`
	SpeakerNotes       string `json:"speaker_notes"`
	RewrittenContent   string `json:"rewritten_content"`
	NarrationParagraph string `json:"narration_paragraph"`
	RewriteFailed      bool   `json:"rewrite_failed,omitempty"`
}

// RunDTO is the API shape of a processing run.
type RunDTO struct {
	ID            string               `json:"id"`
	TotalSlides   int                  `json:"total_slides"`
	Configuration domain.Configuration `json:"configuration"`
	Slides        []SlideDTO           `json:"slides"`
	CreatedAt     string               `json:"created_at"`
}

// InstructionDTO carries a free-text edit instruction.
type InstructionDTO struct {
	Instruction string `json:"instruction"`
}

// Create handles POST /runs: multipart upload plus configuration fields.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadLen)
	if err := r.ParseMultipartForm(h.maxUploadLen); err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read upload", err.Error())
		return
	}

	cfg, err := configurationFromForm(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	run, err := h.service.Process(ctx, data, header.Filename, cfg)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", header.Filename).Msg("Processing failed")
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// Get handles GET /runs/{runId}.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRunDTO(run))
}

// Delete handles DELETE /runs/{runId}.
func (h *RunHandler) Delete(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRun(r.Context(), runID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Progress handles GET /runs/{runId}/progress.
func (h *RunHandler) Progress(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	snap, found := h.service.Progress(runID)
	if !found {
		h.writeError(w, http.StatusNotFound, "no progress recorded for run", "")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// RetryNarration handles POST /runs/{runId}/narration/retry.
func (h *RunHandler) RetryNarration(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.service.RetryNarration(r.Context(), runID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRunDTO(run))
}

// RefineSlide handles POST /runs/{runId}/slides/{index}/refine.
func (h *RunHandler) RefineSlide(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid slide index", err.Error())
		return
	}

	var req InstructionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	run, err := h.service.RefineSlide(r.Context(), runID, index, req.Instruction)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRunDTO(run))
}

// GlobalRewrite handles POST /runs/{runId}/rewrite.
func (h *RunHandler) GlobalRewrite(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	var req InstructionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	run, err := h.service.GlobalRewrite(r.Context(), runID, req.Instruction)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRunDTO(run))
}

// Export handles GET /runs/{runId}/export?format=text.
func (h *RunHandler) Export(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	artifact, err := h.exporter.Export(r.Context(), run, format)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	w.Write(artifact.Data)
}

func (h *RunHandler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid run id", err.Error())
		return uuid.Nil, false
	}
	return runID, true
}

func configurationFromForm(r *http.Request) (domain.Configuration, error) {
	cfg := domain.DefaultConfiguration()

	if v := r.FormValue("tone"); v != "" {
		tone, err := domain.ParseTone(v)
		if err != nil {
			return cfg, err
		}
		cfg.Tone = tone
	}
	if v := r.FormValue("audience_level"); v != "" {
		audience, err := domain.ParseAudienceLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.AudienceLevel = audience
	}
	if v := r.FormValue("length_mode"); v != "" {
		cfg.Length.Mode = domain.LengthMode(v)
	}
	if v := r.FormValue("min_words"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, domain.InvalidFormatError("min_words must be an integer", err)
		}
		cfg.Length.MinWords = n
	}
	if v := r.FormValue("max_words"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, domain.InvalidFormatError("max_words must be an integer", err)
		}
		cfg.Length.MaxWords = n
	}
	if v := r.FormValue("use_contextual_notes"); v != "" {
		cfg.UseContextualNotes = v == "true" || v == "1"
	}
	if v := r.FormValue("enable_ai_polishing"); v != "" {
		cfg.EnableAIPolishing = v == "true" || v == "1"
	}
	cfg.CustomInstructions = r.FormValue("custom_instructions")

	return cfg, cfg.Validate()
}

func toRunDTO(run *domain.ProcessingRun) RunDTO {
	dto := RunDTO{
		ID:            run.ID.String(),
		TotalSlides:   len(run.Slides),
		Configuration: run.Config,
		Slides:        make([]SlideDTO, 0, len(run.Slides)),
		CreatedAt:     run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, slide := range run.Slides {
		dto.Slides = append(dto.Slides, SlideDTO{
			Index:              slide.Index,
			RawText:            slide.RawText,
			SpeakerNotes:       slide.SpeakerNotes,
			RewrittenContent:   slide.RewrittenContent,
			NarrationParagraph: slide.NarrationParagraph,
			RewriteFailed:      slide.RewriteFailed,
		})
	}
	return dto
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func (h *RunHandler) writeDomainError(w http.ResponseWriter, err error) {
	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		h.writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Kind {
	case domain.KindInvalidFormat, domain.KindEmptyInstruction:
		status = http.StatusBadRequest
	case domain.KindTooManySlides, domain.KindSlideCountMismatch:
		status = http.StatusUnprocessableEntity
	case domain.KindFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case domain.KindProvider:
		status = http.StatusBadGateway
	case domain.KindRunNotFound:
		status = http.StatusNotFound
	case domain.KindSourceDeckUnavailable:
		status = http.StatusGone
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   string(domErr.Kind),
		"message": domErr.Message,
	})
}

func (h *RunHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *RunHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

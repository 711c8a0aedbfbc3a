package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/testimonial-board/internal/apperror"
	"github.com/sakif/testimonial-board/internal/auth"
	"github.com/sakif/testimonial-board/internal/service"
)

// maxSubmissionBytes caps the multipart body. Testimonial clips are short
// browser recordings; 50MB is generous without letting a single request
// buffer arbitrary amounts of memory and upload bandwidth.
const maxSubmissionBytes = 50 << 20

// TestimonialHandler exposes the submission and feed endpoints.
type TestimonialHandler struct {
	service *service.TestimonialService
	logger  *slog.Logger
}

// NewTestimonialHandler creates a TestimonialHandler.
func NewTestimonialHandler(svc *service.TestimonialService, logger *slog.Logger) *TestimonialHandler {
	return &TestimonialHandler{service: svc, logger: logger}
}

// HandleSubmit accepts a testimonial submission.
//
// HTTP: POST /api/testimonials (multipart/form-data)
// Auth: required (RequireAuth middleware)
//
// Fields: name, course, type (text|audio|video), date (ISO-8601), and either
// a binary "media" part or an inline "content" field. When both are present
// the attachment wins.
//
// Responses: 201 with the created record; 401 without a session (handled by
// the middleware before this runs); 400 on validation failures; 502 when the
// media host fails; 500 on a storage failure.
func (h *TestimonialHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// RequireAuth already guards this route; fail closed anyway.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)

	// 10MB in memory, the rest spills to temp files.
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		h.logger.Warn("invalid multipart submission",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, apperror.ValidationFailed("body", "request body must be valid multipart/form-data"))
		return
	}

	in := service.SubmitInput{
		Name:    r.FormValue("name"),
		Course:  r.FormValue("course"),
		Type:    r.FormValue("type"),
		Date:    r.FormValue("date"),
		Content: r.FormValue("content"),
	}

	// At most one attachment; absence is not an error here — the service
	// decides whether the combination of type/content/media is valid.
	if file, _, err := r.FormFile("media"); err == nil {
		defer file.Close()
		in.Media = file
	}

	testimonial, err := h.service.Submit(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, testimonial)
}

// listResponse is the feed envelope. Field names match what the frontend
// consumes: "number" in the query becomes "limit" in the response.
type listResponse struct {
	Testimonials interface{} `json:"testimonials"`
	Total        int         `json:"total"`
	Page         int         `json:"page"`
	Limit        int         `json:"limit"`
	TotalPages   int         `json:"totalPages"`
}

// HandleList returns one page of the public feed.
//
// HTTP: GET /api/testimonials?number=<pageSize>&page=<page>
// Auth: none — the feed is public.
//
// Absent parameters default to number=10, page=1. Present-but-invalid
// parameters (non-numeric, zero, negative) are a 400, never silently
// replaced with the defaults.
func (h *TestimonialHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pageSize, err := queryInt(r, "number", service.DefaultPageSize)
	if err != nil {
		writeError(w, apperror.ValidationFailed("number", "number must be a positive integer"))
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, apperror.ValidationFailed("page", "page must be a positive integer"))
		return
	}

	result, err := h.service.List(r.Context(), pageSize, page)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Testimonials: result.Items,
		Total:        result.Total,
		Page:         result.Page,
		Limit:        result.PageSize,
		TotalPages:   result.TotalPages,
	})
}

// queryInt reads an integer query parameter, returning fallback when the
// parameter is absent and an error when it is present but not a number.
// Range validation (positivity) belongs to the service.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

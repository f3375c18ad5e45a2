package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feedtrack/feedtrack/internal/export"
	"github.com/feedtrack/feedtrack/internal/models"
	"github.com/feedtrack/feedtrack/internal/repository"
	"github.com/feedtrack/feedtrack/internal/services"
)

// MaxImportSize caps spreadsheet uploads.
const MaxImportSize = 10 << 20

// SubmitRequest represents the request body for leaving feedback.
type SubmitRequest struct {
	StudentID int64  `json:"student_id"`
	Course    string `json:"course"`
	Feedback  string `json:"feedback"`
}

// FeedbackResponse represents a stored feedback entry.
type FeedbackResponse struct {
	ID        string `json:"id"`
	StudentID int64  `json:"student_id"`
	Course    string `json:"course"`
	Feedback  string `json:"feedback"`
	CreatedAt string `json:"created_at"`
}

// ListResponse represents the entries for a course.
type ListResponse struct {
	Course  string             `json:"course"`
	Count   int                `json:"count"`
	Entries []FeedbackResponse `json:"entries"`
}

// ImportResponse summarises a spreadsheet import.
type ImportResponse struct {
	Imported int           `json:"imported"`
	Rejected []RowRejected `json:"rejected,omitempty"`
}

// RowRejected describes a spreadsheet row that was not imported.
type RowRejected struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// FeedbackHandler handles feedback endpoints.
type FeedbackHandler struct {
	service services.FeedbackService
	submit  []func(http.Handler) http.Handler
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(svc services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// UseOnSubmit adds middleware that only wraps the endpoints that store feedback.
func (h *FeedbackHandler) UseOnSubmit(mw ...func(http.Handler) http.Handler) *FeedbackHandler {
	h.submit = append(h.submit, mw...)
	return h
}

// RegisterRoutes mounts the feedback endpoints on r.
func (h *FeedbackHandler) RegisterRoutes(r chi.Router) {
	r.With(h.submit...).Post("/feedback", h.Submit)
	r.With(h.submit...).Post("/courses/{course}/feedback.xlsx", h.ImportCourse)
	r.Get("/feedback/{id}", h.Get)
	r.Delete("/feedback/{id}", h.Delete)
	r.Get("/students/{studentID}/feedback", h.GetLatest)
	r.Get("/courses/{course}/feedback", h.ListByCourse)
	r.Get("/courses/{course}/feedback.xlsx", h.ExportCourse)
}

// Submit handles POST /api/v1/feedback requests.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	entry := &models.Feedback{
		StudentID: req.StudentID,
		Course:    req.Course,
		Text:      req.Feedback,
	}
	if _, err := h.service.AddFeedback(r.Context(), entry); err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(entry))
}

// Get handles GET /api/v1/feedback/{id} requests.
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(entry))
}

// GetLatest handles GET /api/v1/students/{studentID}/feedback requests.
func (h *FeedbackHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: models.ErrInvalidStudentID.Error(),
			Code:  "INVALID_STUDENT_ID",
		})
		return
	}

	entry, err := h.service.GetFeedback(r.Context(), studentID)
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(entry))
}

// ListByCourse handles GET /api/v1/courses/{course}/feedback requests.
func (h *FeedbackHandler) ListByCourse(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	course := models.NormalizeCourse(chi.URLParam(r, "course"))
	entries, err := h.service.ListByCourse(r.Context(), course, limit)
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	resp := ListResponse{
		Course:  course,
		Count:   len(entries),
		Entries: make([]FeedbackResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExportCourse handles GET /api/v1/courses/{course}/feedback.xlsx requests.
func (h *FeedbackHandler) ExportCourse(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	// The course names the sheet and the download, so it must be a real code.
	course, err := models.ValidateCourse(chi.URLParam(r, "course"))
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}
	entries, err := h.service.ListByCourse(r.Context(), course, limit)
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	// Build the workbook first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := export.WriteCourseXLSX(&buf, course, entries); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "failed to build spreadsheet",
			Code:  "EXPORT_FAILED",
		})
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-feedback.xlsx"`, course))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ImportCourse handles POST /api/v1/courses/{course}/feedback.xlsx requests.
// Every row is screened the same way as a single submission.
func (h *FeedbackHandler) ImportCourse(w http.ResponseWriter, r *http.Request) {
	course, err := models.ValidateCourse(chi.URLParam(r, "course"))
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}
	body := http.MaxBytesReader(w, r.Body, MaxImportSize)

	parsed, skipped, err := export.ReadFeedbackXLSX(body, course)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_SPREADSHEET",
		})
		return
	}

	resp := ImportResponse{}
	for _, s := range skipped {
		_, errResp := mapErrorToResponse(s.Err)
		resp.Rejected = append(resp.Rejected, RowRejected{Row: s.Row, Error: s.Err.Error(), Code: errResp.Code})
	}

	for _, row := range parsed {
		entry := &models.Feedback{StudentID: row.Create.StudentID, Course: row.Create.Course, Text: row.Create.Text}
		if _, err := h.service.AddFeedback(r.Context(), entry); err != nil {
			if !services.IsValidationError(err) {
				status, errResp := mapErrorToResponse(err)
				writeJSON(w, status, errResp)
				return
			}
			_, errResp := mapErrorToResponse(err)
			resp.Rejected = append(resp.Rejected, RowRejected{Row: row.Row, Error: err.Error(), Code: errResp.Code})
			continue
		}
		resp.Imported++
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/feedback/{id} requests.
func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return repository.DefaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "limit must be a positive integer",
			Code:  "INVALID_LIMIT",
		})
		return 0, false
	}
	return limit, true
}

func toResponse(e *models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:        e.ID,
		StudentID: e.StudentID,
		Course:    e.Course,
		Feedback:  e.Text,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// mapErrorToResponse maps service errors to HTTP status codes and error responses.
func mapErrorToResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrInvalidStudentID):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_STUDENT_ID",
		}
	case errors.Is(err, models.ErrEmptyCourse):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "EMPTY_COURSE",
		}
	case errors.Is(err, models.ErrInvalidCourse):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_COURSE",
		}
	case errors.Is(err, models.ErrEmptyFeedback):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "EMPTY_FEEDBACK",
		}
	case errors.Is(err, services.ErrNilFeedback):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		}
	case errors.Is(err, models.ErrFeedbackNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		}
	case errors.Is(err, services.ErrMaliciousInput):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "MALICIOUS_INPUT",
		}
	case errors.Is(err, services.ErrFeedbackTooLong):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "FEEDBACK_TOO_LONG",
		}
	case errors.Is(err, services.ErrInvalidText):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TEXT",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		}
	}
}

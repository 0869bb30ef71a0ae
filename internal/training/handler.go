package training

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smiledent/clinic-site/internal/http/middleware"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// Handler serves the training portal. Routes must sit behind StaffJWT.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a training handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the portal under /api/training.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/courses", h.ListCourses)
	r.Get("/courses/{id}", h.GetCourse)
	r.Get("/lessons/{id}", h.GetLesson)
	r.Post("/lessons/{id}/complete", h.CompleteLesson)
	r.Get("/progress", h.GetProgress)
	return r
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.StaffFromContext(r.Context())
	if !ok || claims.Subject == "" {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return claims.Subject, true
}

// ListCourses handles GET /api/training/courses
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	courses, err := h.svc.CoursesFor(r.Context(), uid)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": courses})
}

// GetCourse handles GET /api/training/courses/{id}
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	course, err := h.svc.Course(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": course, "progress": CourseProgress(course)})
}

// GetLesson handles GET /api/training/lessons/{id}
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	if _, ok := userID(w, r); !ok {
		return
	}
	lesson, err := h.svc.Lesson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": lesson})
}

// CompleteLesson handles POST /api/training/lessons/{id}/complete
func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.MarkLessonComplete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProgress handles GET /api/training/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	progress, err := h.svc.Progress(r.Context(), uid)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": progress})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCourseNotFound):
		jsonError(w, "course not found", http.StatusNotFound)
	case errors.Is(err, ErrLessonNotFound):
		jsonError(w, "lesson not found", http.StatusNotFound)
	default:
		h.logger.Error("training: request failed", "error", err)
		jsonError(w, "Не удалось загрузить данные", http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Kerhoff/QuestboT/internal/config"
	"github.com/Kerhoff/QuestboT/internal/metrics"
	"github.com/Kerhoff/QuestboT/internal/service"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// ParentNotifier sends a photo-review prompt to a parent chat. Implemented by
// the Telegram bot.
type ParentNotifier interface {
	NotifyParent(ctx context.Context, parentChatID int64, submissionID, taskName, photoPath string) error
}

// Server provides the HTTP API used by the child-facing quest client.
type Server struct {
	svc      *service.Service
	notifier ParentNotifier
	cfg      *config.Config
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, notifier ParentNotifier, cfg *config.Config, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, notifier: notifier, cfg: cfg, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.withRecovery(s.withCORS(s.mux))
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/check-parent-link/{sessionID}", s.handleCheckParentLink)
	s.mux.HandleFunc("POST /api/upload-photo", s.handleUploadPhoto)
	s.mux.HandleFunc("GET /api/photo-status/{submissionID}", s.handlePhotoStatus)
	s.mux.HandleFunc("GET /api/session/{sessionID}/photos", s.handleSessionPhotos)

	// Uploaded photos are served directly so the public photo URL resolves.
	s.mux.Handle("GET /uploads/photos/",
		http.StripPrefix("/uploads/photos/", http.FileServer(http.Dir(s.cfg.PhotosDir))))

	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /", s.handleRoot)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// withCORS restricts cross-origin access to the quest web client origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := make(map[string]bool)
	for _, origin := range s.cfg.AllowedOrigins() {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRecovery converts an escaped panic into a generic 500 response.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Errorf("Panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				s.respondError(w, http.StatusInternalServerError, "Something went wrong")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// "GET /" matches every unregistered path; only the root itself is the
	// health check.
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Halloween Quest API is running",
		"version": Version,
	})
}

// ---------------------------------------------------------------------------
// Parent link
// ---------------------------------------------------------------------------

type linkCheckResponse struct {
	Linked     bool   `json:"linked"`
	ParentName string `json:"parent_name,omitempty"`
}

func (s *Server) handleCheckParentLink(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	link, err := s.svc.CheckParentLink(r.Context(), sessionID)
	if err != nil {
		s.logger.WithError(err).Error("failed to check parent link")
		s.respondError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if link == nil {
		s.respondJSON(w, http.StatusOK, linkCheckResponse{Linked: false})
		return
	}

	s.respondJSON(w, http.StatusOK, linkCheckResponse{
		Linked:     true,
		ParentName: link.DisplayName(),
	})
}

// ---------------------------------------------------------------------------
// Photo upload
// ---------------------------------------------------------------------------

type photoSubmissionResponse struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submission_id,omitempty"`
	Message      string `json:"message"`
}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	// A little slack over the photo ceiling for the other form fields.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPhotoSize+1<<20)

	if err := r.ParseMultipartForm(s.cfg.MaxPhotoSize); err != nil {
		metrics.PhotoUploads.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	taskName := strings.TrimSpace(r.FormValue("task_name"))
	taskID, err := strconv.ParseInt(r.FormValue("task_id"), 10, 64)
	if sessionID == "" || taskName == "" || err != nil {
		metrics.PhotoUploads.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "session_id, task_id and task_name are required")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		metrics.PhotoUploads.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		metrics.PhotoUploads.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "File must be an image")
		return
	}
	if header.Size > s.cfg.MaxPhotoSize {
		metrics.PhotoUploads.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "File too large")
		return
	}

	// Check the link before touching the disk so a rejected upload leaves
	// no file behind.
	link, err := s.svc.CheckParentLink(r.Context(), sessionID)
	if err != nil {
		s.logger.WithError(err).Error("failed to check parent link for upload")
		s.respondError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if link == nil {
		metrics.PhotoUploads.WithLabelValues("not_linked").Inc()
		s.respondError(w, http.StatusNotFound, "Parent not linked")
		return
	}

	submissionID := uuid.NewString()
	filename := submissionID + "." + photoExtension(header.Filename)
	photoPath := filepath.Join(s.cfg.PhotosDir, filename)

	if err := s.savePhoto(photoPath, file); err != nil {
		s.logger.WithError(err).Error("failed to save uploaded photo")
		metrics.PhotoUploads.WithLabelValues("failed").Inc()
		s.respondError(w, http.StatusInternalServerError, "Failed to save photo")
		return
	}

	photoURL := fmt.Sprintf("%s/uploads/photos/%s", s.cfg.WebAppURL, filename)

	sub, err := s.svc.SubmitPhoto(r.Context(), submissionID, sessionID, taskID, taskName, photoURL, photoPath)
	if err != nil {
		// The link can disappear between the pre-check and the insert;
		// the transactional submit catches that.
		if errors.Is(err, service.ErrNotLinked) {
			metrics.PhotoUploads.WithLabelValues("not_linked").Inc()
			s.respondError(w, http.StatusNotFound, "Parent not linked")
			return
		}
		s.logger.WithError(err).Error("failed to persist photo submission")
		metrics.PhotoUploads.WithLabelValues("failed").Inc()
		s.respondError(w, http.StatusInternalServerError, "Failed to save photo submission")
		return
	}

	if err := s.notifier.NotifyParent(r.Context(), sub.ParentChatID, submissionID, taskName, photoPath); err != nil {
		// The file and the submission stay; the child sees an error and
		// can retry the whole upload.
		s.logger.WithError(err).Error("failed to notify parent")
		metrics.PhotoUploads.WithLabelValues("failed").Inc()
		s.respondError(w, http.StatusInternalServerError, "Failed to send photo to parent")
		return
	}

	metrics.PhotoUploads.WithLabelValues("ok").Inc()
	s.respondJSON(w, http.StatusOK, photoSubmissionResponse{
		Success:      true,
		SubmissionID: submissionID,
		Message:      "Photo uploaded and sent to parent for review",
	})
}

func (s *Server) savePhoto(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create photos directory: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create photo file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write photo file: %w", err)
	}
	return nil
}

// photoExtension derives the stored file extension from the uploaded
// filename, defaulting to jpg.
func photoExtension(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return "jpg"
	}
	return strings.ToLower(ext)
}

// ---------------------------------------------------------------------------
// Photo status
// ---------------------------------------------------------------------------

type photoStatusResponse struct {
	Status     string  `json:"status"`
	Comment    *string `json:"comment"`
	ReviewedAt *string `json:"reviewed_at"`
}

func (s *Server) handlePhotoStatus(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("submissionID")

	sub, err := s.svc.GetSubmission(r.Context(), submissionID)
	if err != nil {
		s.logger.WithError(err).Error("failed to get photo status")
		s.respondError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if sub == nil {
		s.respondError(w, http.StatusNotFound, "Submission not found")
		return
	}

	resp := photoStatusResponse{
		Status:  string(sub.Status),
		Comment: sub.ParentComment,
	}
	if sub.ReviewedAt != nil {
		reviewedAt := sub.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &reviewedAt
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Session photos
// ---------------------------------------------------------------------------

func (s *Server) handleSessionPhotos(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Feature not implemented yet",
	})
}

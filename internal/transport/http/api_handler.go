package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"liveclass-service/internal/app"
	"liveclass-service/internal/auth"
	"liveclass-service/internal/domain"
)

// APIHandler serves the synchronous JSON interface: the instructor's
// transition operations and results, the student write path, and ticket
// issuance for realtime admission.
type APIHandler struct {
	service *app.LiveService
	tickets app.TicketStore
	secret  string
	log     *zap.Logger
}

func NewAPIHandler(service *app.LiveService, tickets app.TicketStore, secret string, log *zap.Logger) *APIHandler {
	return &APIHandler{service: service, tickets: tickets, secret: secret, log: log}
}

// Register mounts all routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("POST /api/websocket/ticket", h.requireAuth(h.issueTicket))

	mux.HandleFunc("GET /api/instructor/lessons", h.requireStaff(h.listLessons))
	mux.HandleFunc("POST /api/instructor/lessons/{seq}/activate", h.requireStaff(h.activateLesson))
	mux.HandleFunc("POST /api/instructor/lessons/{seq}/close", h.requireStaff(h.closeLesson))
	mux.HandleFunc("GET /api/instructor/quizzes", h.requireStaff(h.listQuizzes))
	mux.HandleFunc("POST /api/instructor/quizzes/{id}/activate", h.requireStaff(h.activateQuiz))
	mux.HandleFunc("POST /api/instructor/quizzes/{id}/review", h.requireStaff(h.reviewQuiz))
	mux.HandleFunc("POST /api/instructor/quizzes/{id}/close", h.requireStaff(h.closeQuiz))
	mux.HandleFunc("GET /api/instructor/quizzes/{id}/results", h.requireStaff(h.quizResults))

	mux.HandleFunc("GET /api/student/me", h.requireAuth(h.studentMe))
	mux.HandleFunc("GET /api/student/responses", h.requireAuth(h.listResponses))
	mux.HandleFunc("POST /api/student/responses", h.requireAuth(h.submitResponse))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, identity domain.Identity)

func (h *APIHandler) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		identity, err := auth.Parse(h.secret, strings.TrimSpace(header[len("bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token.")
			return
		}
		next(w, r, identity)
	}
}

func (h *APIHandler) requireStaff(next authedHandler) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
		if !identity.Staff {
			writeError(w, http.StatusForbidden, "Instructor privilege required.")
			return
		}
		next(w, r, identity)
	})
}

func (h *APIHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *APIHandler) issueTicket(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	token, err := h.tickets.Mint(r.Context(), identity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ticket": token})
}

func (h *APIHandler) listLessons(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	lessons, err := h.service.Lessons(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *APIHandler) activateLesson(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	seq, ok := pathInt(w, r, "seq")
	if !ok {
		return
	}
	message, err := h.service.ActivateLesson(r.Context(), seq)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeMessage(w, message)
}

func (h *APIHandler) closeLesson(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	seq, ok := pathInt(w, r, "seq")
	if !ok {
		return
	}
	message, err := h.service.CloseLesson(r.Context(), seq)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeMessage(w, message)
}

func (h *APIHandler) listQuizzes(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	quizzes, err := h.service.ActiveQuizzes(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	snapshots := make([]*domain.QuizSnapshot, 0, len(quizzes))
	for i := range quizzes {
		snapshots = append(snapshots, domain.InstructorSnapshot(&quizzes[i]))
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (h *APIHandler) activateQuiz(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	h.quizTransition(w, r, h.service.ActivateQuiz)
}

func (h *APIHandler) reviewQuiz(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	h.quizTransition(w, r, h.service.ReviewQuiz)
}

func (h *APIHandler) closeQuiz(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	h.quizTransition(w, r, h.service.CloseQuiz)
}

func (h *APIHandler) quizTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (string, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	message, err := op(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeMessage(w, message)
}

func (h *APIHandler) quizResults(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	results, err := h.service.QuizResults(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) studentMe(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	student, err := h.service.Student(r.Context(), identity.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *APIHandler) listResponses(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	var quizID int64
	if raw := r.URL.Query().Get("quiz"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid quiz.")
			return
		}
		quizID = parsed
	}
	responses, err := h.service.Responses(r.Context(), identity, quizID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

type responsePayload struct {
	Quiz   int64 `json:"quiz"`
	Option int64 `json:"option"`
}

func (h *APIHandler) submitResponse(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	var payload responsePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Quiz == 0 || payload.Option == 0 {
		writeError(w, http.StatusBadRequest, "Invalid response payload.")
		return
	}
	response, err := h.service.SubmitResponse(r.Context(), identity, payload.Quiz, payload.Option)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response)
}

// writeDomainError maps domain sentinels to statuses. Only the first
// violation is surfaced, never an aggregate.
func (h *APIHandler) writeDomainError(w http.ResponseWriter, err error) {
	var notReviewing *domain.NotReviewingError
	switch {
	case errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.As(err, &notReviewing):
		writeError(w, http.StatusBadRequest,
			"Quiz "+strconv.Itoa(notReviewing.Order)+" is not under review.")
	case errors.Is(err, domain.ErrInvalidQuiz):
		writeError(w, http.StatusBadRequest, "Invalid quiz.")
	case errors.Is(err, domain.ErrInvalidOption):
		writeError(w, http.StatusBadRequest, "Invalid option.")
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return value, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	value, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return value, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/auth"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// Handler is the REST facade over the tracker, lifecycle manager, and report
// aggregator. It authenticates bearer tokens and pre-scopes event queries for
// non-admin callers; the application layer trusts its filters.
type Handler struct {
	tracker   *app.Tracker
	lifecycle *app.Lifecycle
	reports   *app.Reports
	verifier  *auth.Verifier
}

func NewHandler(tracker *app.Tracker, lifecycle *app.Lifecycle, reports *app.Reports, verifier *auth.Verifier) *Handler {
	return &Handler{tracker: tracker, lifecycle: lifecycle, reports: reports, verifier: verifier}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /events", h.authed(h.trackEvent))
	mux.HandleFunc("GET /events", h.authed(h.listEvents))
	mux.HandleFunc("GET /events/session/{sessionId}", h.authed(h.sessionTimeline))
	mux.HandleFunc("GET /events/quiz/{classroomId}/{quizId}", h.authed(h.quizTimeline))
	mux.HandleFunc("POST /sessions", h.authed(h.openSession))
	mux.HandleFunc("POST /sessions/{id}/end", h.authed(h.closeSession))
	mux.HandleFunc("GET /sessions/active/{classroomId}", h.authed(h.activeSessions))
	mux.HandleFunc("GET /reports/performance", h.authed(h.performanceReport))
	mux.HandleFunc("GET /reports/engagement", h.authed(h.engagementReport))
	mux.HandleFunc("GET /reports/effectiveness", h.authed(h.effectivenessReport))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, caller domain.Principal)

// authed verifies the bearer token and passes the caller identity through.
func (h *Handler) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		caller, err := h.verifier.Verify(token)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, caller)
	}
}

type trackEventRequest struct {
	EventType   domain.EventType `json:"eventType"`
	AppOrigin   domain.AppOrigin `json:"appOrigin"`
	SchoolID    string           `json:"schoolId"`
	ClassroomID string           `json:"classroomId"`
	SessionID   string           `json:"sessionId"`
	Metadata    domain.Metadata  `json:"metadata"`
}

func (h *Handler) trackEvent(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var req trackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.Invalid(err))
		return
	}

	// Identity fields come from the credential, not the body.
	event, err := h.tracker.Track(r.Context(), app.EventInput{
		EventType:   req.EventType,
		AppOrigin:   req.AppOrigin,
		UserID:      caller.ID,
		UserRole:    caller.Role,
		SchoolID:    req.SchoolID,
		ClassroomID: req.ClassroomID,
		SessionID:   req.SessionID,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	q := r.URL.Query()
	filter := domain.EventFilter{
		EventType:   domain.EventType(q.Get("eventType")),
		UserID:      q.Get("userId"),
		SchoolID:    q.Get("schoolId"),
		ClassroomID: q.Get("classroomId"),
		SessionID:   q.Get("sessionId"),
		QuizID:      q.Get("quizId"),
	}
	var err error
	if filter.From, err = parseTime(q.Get("startDate")); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTime(q.Get("endDate")); err != nil {
		writeError(w, err)
		return
	}

	// Non-admin callers only see their own school's events.
	if caller.Role != domain.RoleAdmin {
		filter.SchoolID = caller.SchoolID
	}

	events, err := h.tracker.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) sessionTimeline(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	events, err := h.tracker.SessionTimeline(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) quizTimeline(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	var schoolID string
	if caller.Role != domain.RoleAdmin {
		schoolID = caller.SchoolID
	}
	events, err := h.tracker.QuizTimeline(r.Context(), schoolID,
		r.PathValue("classroomId"), r.PathValue("quizId"), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type openSessionRequest struct {
	SchoolID    string `json:"schoolId"`
	ClassroomID string `json:"classroomId"`
	QuizID      string `json:"quizId"`
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	if caller.Role != domain.RoleTeacher && caller.Role != domain.RoleAdmin {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.Invalid(err))
		return
	}
	session, err := h.lifecycle.OpenSession(r.Context(), app.OpenSessionParams{
		SchoolID:    req.SchoolID,
		ClassroomID: req.ClassroomID,
		QuizID:      req.QuizID,
		InitiatorID: caller.ID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request, caller domain.Principal) {
	if caller.Role != domain.RoleTeacher && caller.Role != domain.RoleAdmin {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	session, err := h.lifecycle.CloseSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) activeSessions(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	sessions, err := h.lifecycle.ActiveSessions(r.Context(), r.PathValue("classroomId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) performanceReport(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	q := r.URL.Query()
	report, err := h.reports.Performance(r.Context(), app.PerformanceFilter{
		ClassroomID: q.Get("classroomId"),
		QuizID:      q.Get("quizId"),
		UserID:      q.Get("userId"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) engagementReport(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	q := r.URL.Query()
	filter := app.EngagementFilter{
		ClassroomID: q.Get("classroomId"),
		QuizID:      q.Get("quizId"),
	}
	var err error
	if filter.From, err = parseTime(q.Get("startDate")); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTime(q.Get("endDate")); err != nil {
		writeError(w, err)
		return
	}
	report, err := h.reports.Engagement(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) effectivenessReport(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	rows, err := h.reports.ContentEffectiveness(r.Context(), r.URL.Query().Get("quizId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.Invalid(err)
	}
	return t, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

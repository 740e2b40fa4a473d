package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/auth"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// Close codes distinguishing the two unauthenticated connect failures, so
// clients can tell "log in first" from "log in again".
const (
	CloseNoCredential      = 4001
	CloseInvalidCredential = 4002
)

// Gateway authenticates inbound real-time connections, parses messages into
// typed commands, authorizes them against the policy table, and drives the
// registry, tracker, and report aggregator. Every per-message error is
// converted into an ERROR message to the originating connection; nothing
// escapes the read loop.
type Gateway struct {
	registry *Registry
	tracker  *app.Tracker
	reports  *app.Reports
	verifier *auth.Verifier
	upgrader websocket.Upgrader
}

func NewGateway(registry *Registry, tracker *app.Tracker, reports *app.Reports, verifier *auth.Verifier) *Gateway {
	return &Gateway{
		registry: registry,
		tracker:  tracker,
		reports:  reports,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and runs the connection's read loop. The
// credential arrives in the token query parameter; an unauthenticated
// connection is closed before any message is processed and leaves no room
// membership or event behind.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	if token == "" {
		c := newClient(conn, domain.Principal{})
		c.closeWith(CloseNoCredential, "credential required")
		return
	}
	principal, err := g.verifier.Verify(token)
	if err != nil {
		c := newClient(conn, domain.Principal{})
		c.closeWith(CloseInvalidCredential, "credential rejected")
		return
	}

	client := newClient(conn, principal)
	g.registry.Register(client)
	defer g.disconnect(r.Context(), client)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		g.dispatch(r.Context(), client, raw)
	}
}

// dispatch routes one inbound message: shape validation, policy lookup, then
// the per-command handler. Handler errors become a single ERROR message to
// the offending connection and are never broadcast.
func (g *Gateway) dispatch(ctx context.Context, client *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.sendError(client, fmt.Errorf("%w: malformed message", domain.ErrInvalid))
		return
	}

	if _, known := policy[env.Type]; !known {
		g.sendError(client, fmt.Errorf("%w: unknown message type %q", domain.ErrInvalid, env.Type))
		return
	}
	if !roleAllowed(env.Type, client.principal.Role) {
		g.sendError(client, fmt.Errorf("%w: role %s may not send %s", domain.ErrUnauthorized, client.principal.Role, env.Type))
		return
	}

	var err error
	switch env.Type {
	case cmdJoinClassroom:
		err = g.handleJoin(ctx, client, raw)
	case cmdQuizStart:
		err = g.handleQuizStart(ctx, client, raw)
	case cmdQuizAnswer:
		err = g.handleQuizAnswer(ctx, client, raw)
	case cmdQuizEnd:
		err = g.handleQuizEnd(ctx, client, raw)
	}
	if err != nil {
		g.sendError(client, err)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, client *Client, raw []byte) error {
	var cmd joinClassroomCmd
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.ClassroomID == "" {
		return fmt.Errorf("%w: classroomId is required", domain.ErrInvalid)
	}
	if !classroomAllowed(client.principal, cmd.SchoolID) {
		return fmt.Errorf("%w: access denied to this classroom", domain.ErrUnauthorized)
	}

	g.registry.Join(cmd.ClassroomID, client)

	if _, err := g.tracker.Track(ctx, app.EventInput{
		EventType:   domain.EventClassroomJoin,
		AppOrigin:   originFor(client.principal.Role),
		UserID:      client.principal.ID,
		UserRole:    client.principal.Role,
		SchoolID:    cmd.SchoolID,
		ClassroomID: cmd.ClassroomID,
	}); err != nil {
		return err
	}

	return g.registry.Broadcast(cmd.ClassroomID, userJoinedMsg{
		Type:     msgUserJoined,
		UserID:   client.principal.ID,
		UserRole: client.principal.Role,
	})
}

func (g *Gateway) handleQuizStart(ctx context.Context, client *Client, raw []byte) error {
	var cmd quizStartCmd
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.ClassroomID == "" || cmd.QuizID == "" {
		return fmt.Errorf("%w: classroomId and quizId are required", domain.ErrInvalid)
	}
	if !classroomAllowed(client.principal, cmd.SchoolID) {
		return fmt.Errorf("%w: access denied to this classroom", domain.ErrUnauthorized)
	}

	metadata := domain.Metadata{"quizId": cmd.QuizID}
	for key, value := range cmd.Metadata {
		metadata[key] = value
	}

	// Persist (and open the session) before anything is broadcast.
	event, err := g.tracker.Track(ctx, app.EventInput{
		EventType:   domain.EventQuizStart,
		AppOrigin:   domain.OriginWhiteboard,
		UserID:      client.principal.ID,
		UserRole:    client.principal.Role,
		SchoolID:    cmd.SchoolID,
		ClassroomID: cmd.ClassroomID,
		SessionID:   cmd.SessionID,
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}

	return g.registry.Broadcast(cmd.ClassroomID, quizStartedMsg{
		Type:      msgQuizStarted,
		QuizID:    cmd.QuizID,
		SessionID: event.SessionID,
		Metadata:  cmd.Metadata,
	})
}

func (g *Gateway) handleQuizAnswer(ctx context.Context, client *Client, raw []byte) error {
	var cmd quizAnswerCmd
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.ClassroomID == "" || cmd.QuizID == "" || cmd.QuestionID == "" {
		return fmt.Errorf("%w: classroomId, quizId and questionId are required", domain.ErrInvalid)
	}
	if cmd.Answer == nil {
		return fmt.Errorf("%w: answer is required", domain.ErrInvalid)
	}
	if !classroomAllowed(client.principal, cmd.SchoolID) {
		return fmt.Errorf("%w: access denied to this classroom", domain.ErrUnauthorized)
	}

	if _, err := g.tracker.Track(ctx, app.EventInput{
		EventType:   domain.EventQuizAnswerSubmitted,
		AppOrigin:   domain.OriginNotebook,
		UserID:      client.principal.ID,
		UserRole:    client.principal.Role,
		SchoolID:    cmd.SchoolID,
		ClassroomID: cmd.ClassroomID,
		SessionID:   cmd.SessionID,
		Metadata: domain.Metadata{
			"quizId":     cmd.QuizID,
			"questionId": cmd.QuestionID,
			"answer":     cmd.Answer,
			"isCorrect":  cmd.IsCorrect,
			"timeTaken":  cmd.TimeTaken,
		},
	}); err != nil {
		return err
	}

	if err := g.registry.Broadcast(cmd.ClassroomID, newAnswerMsg{
		Type:       msgNewAnswer,
		QuizID:     cmd.QuizID,
		QuestionID: cmd.QuestionID,
		UserID:     client.principal.ID,
		Answer:     cmd.Answer,
		IsCorrect:  cmd.IsCorrect,
		TimeTaken:  cmd.TimeTaken,
	}); err != nil {
		return err
	}

	return g.broadcastStats(ctx, cmd.ClassroomID, cmd.QuizID, msgQuizStatsUpdate)
}

func (g *Gateway) handleQuizEnd(ctx context.Context, client *Client, raw []byte) error {
	var cmd quizEndCmd
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.ClassroomID == "" || cmd.QuizID == "" {
		return fmt.Errorf("%w: classroomId and quizId are required", domain.ErrInvalid)
	}
	if !classroomAllowed(client.principal, cmd.SchoolID) {
		return fmt.Errorf("%w: access denied to this classroom", domain.ErrUnauthorized)
	}

	event, err := g.tracker.Track(ctx, app.EventInput{
		EventType:   domain.EventQuizEnd,
		AppOrigin:   domain.OriginWhiteboard,
		UserID:      client.principal.ID,
		UserRole:    client.principal.Role,
		SchoolID:    cmd.SchoolID,
		ClassroomID: cmd.ClassroomID,
		SessionID:   cmd.SessionID,
		Metadata:    domain.Metadata{"quizId": cmd.QuizID},
	})
	if err != nil {
		return err
	}

	if err := g.registry.Broadcast(cmd.ClassroomID, quizEndedMsg{
		Type:      msgQuizEnded,
		QuizID:    cmd.QuizID,
		SessionID: event.SessionID,
	}); err != nil {
		return err
	}

	return g.broadcastStats(ctx, cmd.ClassroomID, cmd.QuizID, msgQuizFinalStats)
}

func (g *Gateway) broadcastStats(ctx context.Context, classroomID, quizID, messageType string) error {
	stats, err := g.reports.Performance(ctx, app.PerformanceFilter{
		ClassroomID: classroomID,
		QuizID:      quizID,
	})
	if err != nil {
		return err
	}
	return g.registry.Broadcast(classroomID, quizStatsMsg{
		Type:   messageType,
		QuizID: quizID,
		Stats:  stats,
	})
}

// disconnect is the single cleanup path for graceful closes, read errors, and
// heartbeat terminations alike: drop room membership, log the departure, and
// notify the remaining members.
func (g *Gateway) disconnect(ctx context.Context, client *Client) {
	g.registry.Deregister(client)
	classroomID, wasMember := g.registry.Leave(client)
	client.Close()
	if !wasMember {
		return
	}

	if _, err := g.tracker.Track(ctx, app.EventInput{
		EventType:   domain.EventClassroomLeave,
		AppOrigin:   originFor(client.principal.Role),
		UserID:      client.principal.ID,
		UserRole:    client.principal.Role,
		SchoolID:    client.principal.SchoolID,
		ClassroomID: classroomID,
	}); err != nil {
		log.Printf("track classroom leave: %v", err)
	}

	_ = g.registry.Broadcast(classroomID, userLeftMsg{
		Type:     msgUserLeft,
		UserID:   client.principal.ID,
		UserRole: client.principal.Role,
	})
}

func (g *Gateway) sendError(client *Client, err error) {
	_ = client.sendJSON(errorMsg{
		Type:    msgError,
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

// errorCode maps the error taxonomy onto wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "AUTHENTICATION_ERROR"
	case errors.Is(err, domain.ErrUnauthorized):
		return "AUTHORIZATION_ERROR"
	case errors.Is(err, domain.ErrInvalid):
		return "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT_ERROR"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "UPSTREAM_ERROR"
	}
}

// originFor picks the client surface implied by a role: teachers and admins
// drive the whiteboard, students the notebook.
func originFor(role domain.Role) domain.AppOrigin {
	if role == domain.RoleStudent {
		return domain.OriginNotebook
	}
	return domain.OriginWhiteboard
}

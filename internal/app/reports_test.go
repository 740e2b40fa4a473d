package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/memory"
)

func seedAnswer(t *testing.T, store *memory.EventStore, user, classroom, quiz, question string, correct bool, timeTaken float64, at time.Time) {
	t.Helper()
	err := store.Insert(context.Background(), domain.Event{
		ID:          user + "-" + question + "-" + at.String(),
		EventType:   domain.EventQuizAnswerSubmitted,
		AppOrigin:   domain.OriginNotebook,
		UserID:      user,
		UserRole:    domain.RoleStudent,
		SchoolID:    "s1",
		ClassroomID: classroom,
		Metadata: domain.Metadata{
			"quizId":     quiz,
			"questionId": question,
			"isCorrect":  correct,
			"timeTaken":  timeTaken,
		},
		Timestamp: at,
	})
	if err != nil {
		t.Fatalf("seed answer: %v", err)
	}
}

func TestPerformanceReport(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	reports := app.NewReports(store)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// One correct answer in 10s, one incorrect in 20s.
	seedAnswer(t, store, "u1", "c1", "quiz-1", "q1", true, 10, at)
	seedAnswer(t, store, "u2", "c1", "quiz-1", "q1", false, 20, at.Add(time.Second))
	// Noise in another classroom and another quiz.
	seedAnswer(t, store, "u3", "c2", "quiz-1", "q1", true, 5, at)
	seedAnswer(t, store, "u1", "c1", "quiz-2", "q1", true, 5, at)

	report, err := reports.Performance(ctx, app.PerformanceFilter{ClassroomID: "c1", QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if report.Total != 2 || report.Correct != 1 || report.AvgTime != 15 {
		t.Fatalf("expected {2 1 15}, got %+v", report)
	}

	// Narrowed to one student.
	report, err = reports.Performance(ctx, app.PerformanceFilter{ClassroomID: "c1", QuizID: "quiz-1", UserID: "u2"})
	if err != nil {
		t.Fatalf("performance user: %v", err)
	}
	if report.Total != 1 || report.Correct != 0 || report.AvgTime != 20 {
		t.Fatalf("expected {1 0 20}, got %+v", report)
	}
}

func TestPerformanceReportIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	reports := app.NewReports(store)
	seedAnswer(t, store, "u1", "c1", "quiz-1", "q1", true, 10, time.Now())

	filter := app.PerformanceFilter{ClassroomID: "c1", QuizID: "quiz-1"}
	first, err := reports.Performance(ctx, filter)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := reports.Performance(ctx, filter)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical reports, got %+v vs %+v", first, second)
	}
}

func TestPerformanceReportEmpty(t *testing.T) {
	reports := app.NewReports(memory.NewEventStore())

	report, err := reports.Performance(context.Background(), app.PerformanceFilter{ClassroomID: "c1", QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if report.Total != 0 || report.Correct != 0 || report.AvgTime != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
}

func TestEngagementReport(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	reports := app.NewReports(store)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	attempt := func(user string, eventType domain.EventType) {
		if err := store.Insert(ctx, domain.Event{
			ID:          user + string(eventType),
			EventType:   eventType,
			AppOrigin:   domain.OriginNotebook,
			UserID:      user,
			UserRole:    domain.RoleStudent,
			SchoolID:    "s1",
			ClassroomID: "c1",
			Metadata:    domain.Metadata{"quizId": "quiz-1"},
			Timestamp:   at,
		}); err != nil {
			t.Fatalf("seed attempt: %v", err)
		}
	}

	attempt("u1", domain.EventQuizAttemptStarted)
	attempt("u2", domain.EventQuizAttemptStarted)
	attempt("u3", domain.EventQuizAttemptStarted)
	attempt("u1", domain.EventQuizAttemptCompleted)
	seedAnswer(t, store, "u1", "c1", "quiz-1", "q1", true, 10, at)
	seedAnswer(t, store, "u1", "c1", "quiz-1", "q2", false, 8, at)
	seedAnswer(t, store, "u2", "c1", "quiz-1", "q1", false, 20, at)

	report, err := reports.Engagement(ctx, app.EngagementFilter{ClassroomID: "c1", QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("engagement: %v", err)
	}
	expected := domain.EngagementReport{
		StudentsStarted:   3,
		StudentsFinished:  1,
		StudentsAnswered:  2,
		TotalAnswers:      3,
		ParticipationRate: 2.0 / 3.0,
	}
	if report != expected {
		t.Fatalf("expected %+v, got %+v", expected, report)
	}
}

func TestEngagementReportNobodyStarted(t *testing.T) {
	reports := app.NewReports(memory.NewEventStore())

	report, err := reports.Engagement(context.Background(), app.EngagementFilter{ClassroomID: "c1"})
	if err != nil {
		t.Fatalf("engagement: %v", err)
	}
	if report.ParticipationRate != 0 {
		t.Fatalf("expected 0 participation when nobody started, got %v", report.ParticipationRate)
	}
}

func TestContentEffectivenessReport(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()
	reports := app.NewReports(store)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	seedAnswer(t, store, "u1", "c1", "quiz-1", "q1", true, 10, at)
	seedAnswer(t, store, "u2", "c1", "quiz-1", "q1", true, 14, at)
	seedAnswer(t, store, "u3", "c1", "quiz-1", "q2", false, 30, at)
	// Another quiz's answers must not leak in.
	seedAnswer(t, store, "u1", "c1", "quiz-2", "q9", true, 1, at)

	rows, err := reports.ContentEffectiveness(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("effectiveness: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(rows))
	}
	if rows[0].QuestionID != "q1" || rows[1].QuestionID != "q2" {
		t.Fatalf("expected rows sorted by question, got %s, %s", rows[0].QuestionID, rows[1].QuestionID)
	}
	if rows[0].TotalAnswers != 2 || rows[0].PercentCorrect != 100 || rows[0].AvgTime != 12 {
		t.Fatalf("unexpected q1 row: %+v", rows[0])
	}
	if rows[1].TotalAnswers != 1 || rows[1].PercentCorrect != 0 || rows[1].AvgTime != 30 {
		t.Fatalf("unexpected q2 row: %+v", rows[1])
	}
}

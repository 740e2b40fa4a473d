package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// Reports derives point-in-time statistics by scanning the event log. Every
// call is an independent scan, consistent as of its own read; no aggregation
// state is kept between calls.
type Reports struct {
	events EventStore
}

func NewReports(events EventStore) *Reports {
	return &Reports{events: events}
}

// PerformanceFilter scopes a performance report to one quiz in one classroom,
// optionally narrowed to a single student.
type PerformanceFilter struct {
	ClassroomID string
	QuizID      string
	UserID      string
}

// Performance computes answer count, correct count, and mean time-taken for
// answer events matching the filter. The avgTime denominator is clamped to 1,
// so a zero-total report carries avgTime 0; callers must treat total == 0
// specially rather than trusting avgTime.
func (r *Reports) Performance(ctx context.Context, filter PerformanceFilter) (domain.PerformanceReport, error) {
	if filter.ClassroomID == "" || filter.QuizID == "" {
		return domain.PerformanceReport{}, fmt.Errorf("%w: classroomId and quizId are required", domain.ErrInvalid)
	}

	answers, err := r.events.List(ctx, domain.EventFilter{
		EventType:   domain.EventQuizAnswerSubmitted,
		ClassroomID: filter.ClassroomID,
		QuizID:      filter.QuizID,
		UserID:      filter.UserID,
	})
	if err != nil {
		return domain.PerformanceReport{}, err
	}

	report := domain.PerformanceReport{Total: len(answers)}
	var totalTime float64
	for _, event := range answers {
		if event.Metadata.Bool("isCorrect") {
			report.Correct++
		}
		totalTime += event.Metadata.Float("timeTaken")
	}
	divisor := report.Total
	if divisor == 0 {
		divisor = 1
	}
	report.AvgTime = totalTime / float64(divisor)
	return report, nil
}

// EngagementFilter scopes an engagement report to a classroom, optionally to
// one quiz and a date range.
type EngagementFilter struct {
	ClassroomID string
	QuizID      string
	From        time.Time
	To          time.Time
}

// Engagement derives unique-student participation counts from three
// independent event-type scans over the same filter set. The participation
// rate is 0 when no one started; 0/0 is defined as 0 here, not "undefined".
func (r *Reports) Engagement(ctx context.Context, filter EngagementFilter) (domain.EngagementReport, error) {
	if filter.ClassroomID == "" {
		return domain.EngagementReport{}, fmt.Errorf("%w: classroomId is required", domain.ErrInvalid)
	}

	base := domain.EventFilter{
		ClassroomID: filter.ClassroomID,
		QuizID:      filter.QuizID,
		From:        filter.From,
		To:          filter.To,
	}

	started, err := r.uniqueUsers(ctx, base, domain.EventQuizAttemptStarted)
	if err != nil {
		return domain.EngagementReport{}, err
	}
	finished, err := r.uniqueUsers(ctx, base, domain.EventQuizAttemptCompleted)
	if err != nil {
		return domain.EngagementReport{}, err
	}

	answerFilter := base
	answerFilter.EventType = domain.EventQuizAnswerSubmitted
	answers, err := r.events.List(ctx, answerFilter)
	if err != nil {
		return domain.EngagementReport{}, err
	}
	answered := make(map[string]struct{}, len(answers))
	for _, event := range answers {
		answered[event.UserID] = struct{}{}
	}

	report := domain.EngagementReport{
		StudentsStarted:  len(started),
		StudentsFinished: len(finished),
		StudentsAnswered: len(answered),
		TotalAnswers:     len(answers),
	}
	if report.StudentsStarted > 0 {
		report.ParticipationRate = float64(report.StudentsAnswered) / float64(report.StudentsStarted)
	}
	return report, nil
}

// ContentEffectiveness groups a quiz's answer events by question and reports
// per-question answer volume, accuracy, and mean time-taken. The grouping key
// comes verbatim from event metadata, so a question nobody answered produces
// no row. Rows are sorted by question ID for stable output.
func (r *Reports) ContentEffectiveness(ctx context.Context, quizID string) ([]domain.QuestionEffectiveness, error) {
	if quizID == "" {
		return nil, fmt.Errorf("%w: quizId is required", domain.ErrInvalid)
	}

	answers, err := r.events.List(ctx, domain.EventFilter{
		EventType: domain.EventQuizAnswerSubmitted,
		QuizID:    quizID,
	})
	if err != nil {
		return nil, err
	}

	type grouped struct {
		total     int
		correct   int
		totalTime float64
	}
	byQuestion := make(map[string]*grouped)
	for _, event := range answers {
		questionID := event.Metadata.String("questionId")
		group, ok := byQuestion[questionID]
		if !ok {
			group = &grouped{}
			byQuestion[questionID] = group
		}
		group.total++
		if event.Metadata.Bool("isCorrect") {
			group.correct++
		}
		group.totalTime += event.Metadata.Float("timeTaken")
	}

	rows := make([]domain.QuestionEffectiveness, 0, len(byQuestion))
	for questionID, group := range byQuestion {
		row := domain.QuestionEffectiveness{
			QuestionID:   questionID,
			TotalAnswers: group.total,
			AvgTime:      group.totalTime / float64(group.total),
		}
		row.PercentCorrect = float64(group.correct) / float64(group.total) * 100
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].QuestionID < rows[j].QuestionID })
	return rows, nil
}

func (r *Reports) uniqueUsers(ctx context.Context, base domain.EventFilter, eventType domain.EventType) (map[string]struct{}, error) {
	filter := base
	filter.EventType = eventType
	events, err := r.events.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	users := make(map[string]struct{}, len(events))
	for _, event := range events {
		users[event.UserID] = struct{}{}
	}
	return users, nil
}

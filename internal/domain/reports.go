package domain

// PerformanceReport summarizes answer events for one quiz in one classroom,
// optionally narrowed to a single student.
type PerformanceReport struct {
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	AvgTime float64 `json:"avgTime"`
}

// EngagementReport summarizes classroom participation. Rates are derived from
// unique-student counts across independent event scans.
type EngagementReport struct {
	StudentsStarted   int     `json:"studentsStarted"`
	StudentsFinished  int     `json:"studentsFinished"`
	StudentsAnswered  int     `json:"studentsAnswered"`
	TotalAnswers      int     `json:"totalAnswers"`
	ParticipationRate float64 `json:"participationRate"`
}

// QuestionEffectiveness is one row of a content-effectiveness report.
// Questions with no recorded answers do not produce a row.
type QuestionEffectiveness struct {
	QuestionID     string  `json:"questionId"`
	TotalAnswers   int     `json:"totalAnswers"`
	PercentCorrect float64 `json:"percentCorrect"`
	AvgTime        float64 `json:"avgTime"`
}

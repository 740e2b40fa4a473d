package ws

import "github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"

// Inbound command types.
const (
	cmdJoinClassroom = "JOIN_CLASSROOM"
	cmdQuizStart     = "QUIZ_START"
	cmdQuizAnswer    = "QUIZ_ANSWER"
	cmdQuizEnd       = "QUIZ_END"
)

// Outbound message types.
const (
	msgUserJoined      = "USER_JOINED"
	msgUserLeft        = "USER_LEFT"
	msgQuizStarted     = "QUIZ_STARTED"
	msgQuizEnded       = "QUIZ_ENDED"
	msgNewAnswer       = "NEW_ANSWER"
	msgQuizStatsUpdate = "QUIZ_STATS_UPDATE"
	msgQuizFinalStats  = "QUIZ_FINAL_STATS"
	msgError           = "ERROR"
)

// envelope carries only the discriminator; the full command is re-decoded
// into its typed shape once the type is known.
type envelope struct {
	Type string `json:"type"`
}

type joinClassroomCmd struct {
	SchoolID    string `json:"schoolId"`
	ClassroomID string `json:"classroomId"`
}

type quizStartCmd struct {
	SchoolID    string          `json:"schoolId"`
	ClassroomID string          `json:"classroomId"`
	QuizID      string          `json:"quizId"`
	SessionID   string          `json:"sessionId"`
	Metadata    domain.Metadata `json:"metadata"`
}

type quizAnswerCmd struct {
	SchoolID    string  `json:"schoolId"`
	ClassroomID string  `json:"classroomId"`
	QuizID      string  `json:"quizId"`
	QuestionID  string  `json:"questionId"`
	SessionID   string  `json:"sessionId"`
	Answer      any     `json:"answer"`
	IsCorrect   bool    `json:"isCorrect"`
	TimeTaken   float64 `json:"timeTaken"`
}

type quizEndCmd struct {
	SchoolID    string `json:"schoolId"`
	ClassroomID string `json:"classroomId"`
	QuizID      string `json:"quizId"`
	SessionID   string `json:"sessionId"`
}

type userJoinedMsg struct {
	Type     string      `json:"type"`
	UserID   string      `json:"userId"`
	UserRole domain.Role `json:"userRole"`
}

type userLeftMsg struct {
	Type     string      `json:"type"`
	UserID   string      `json:"userId"`
	UserRole domain.Role `json:"userRole"`
}

type quizStartedMsg struct {
	Type      string          `json:"type"`
	QuizID    string          `json:"quizId"`
	SessionID string          `json:"sessionId"`
	Metadata  domain.Metadata `json:"metadata,omitempty"`
}

type quizEndedMsg struct {
	Type      string `json:"type"`
	QuizID    string `json:"quizId"`
	SessionID string `json:"sessionId"`
}

type newAnswerMsg struct {
	Type       string  `json:"type"`
	QuizID     string  `json:"quizId"`
	QuestionID string  `json:"questionId"`
	UserID     string  `json:"userId"`
	Answer     any     `json:"answer"`
	IsCorrect  bool    `json:"isCorrect"`
	TimeTaken  float64 `json:"timeTaken"`
}

type quizStatsMsg struct {
	Type   string                   `json:"type"`
	QuizID string                   `json:"quizId"`
	Stats  domain.PerformanceReport `json:"stats"`
}

// errorMsg is sent only to the originating connection, never broadcast.
type errorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

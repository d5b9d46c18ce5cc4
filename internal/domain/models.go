package domain

import "time"

// UnresolvedOption is the sentinel stored while a quiz's correct option is unknown.
const UnresolvedOption = -1

// NoSelection marks a response event that carried an empty selection set.
const NoSelection = -1

// Point values applied by the scorer.
const (
	PointsCorrect     = 4
	PointsWrong       = -1
	PointsUnattempted = 0
)

// DefaultLanguage is the language quizzes arrive in; groups on it skip translation.
const DefaultLanguage = "english"

// QuizState tracks a quiz through the intake/broadcast pipeline.
type QuizState string

const (
	QuizReceived       QuizState = "received"
	QuizAwaitingAnswer QuizState = "awaiting_answer"
	QuizResolved       QuizState = "resolved"
	QuizScheduled      QuizState = "scheduled"
	QuizBroadcast      QuizState = "broadcast"
)

// Quiz is a question posted to the hub, with its ordered options and the
// correct option index (UnresolvedOption until a curator resolves it).
// CorrectOption is mutated only by resolution and never after broadcast begins.
type Quiz struct {
	ID            int64
	HubChatID     int64
	MessageID     int
	Question      string
	Options       []string
	CorrectOption int
	Explanation   string
	State         QuizState
	CreatedAt     time.Time
}

// Resolved reports whether the correct option is known.
func (q Quiz) Resolved() bool {
	return q.CorrectOption != UnresolvedOption
}

// ValidOption reports whether idx indexes into the quiz's options.
func (q Quiz) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(q.Options)
}

// PollMapping links a sent poll instance back to its quiz and destination group.
// Created exactly once per (quiz, group) pair at broadcast time.
type PollMapping struct {
	PollID    string
	QuizID    int64
	GroupID   int64
	MessageID int
}

// SentPoll is what the messaging gateway reports after a successful poll send.
type SentPoll struct {
	PollID    string
	MessageID int
}

// User identifies a responding or replying platform user.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Name returns the best display name available for mentions and leaderboards.
func (u User) Name() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

// ResponseRecord is one user's scored answer to one quiz in one group.
// At most one exists per (user, quiz, group); duplicates are silently ignored.
type ResponseRecord struct {
	UserID         int64
	GroupID        int64
	QuizID         int64
	SelectedOption int
	Points         int
	AnsweredAt     time.Time
}

// UserAggregate holds a user's running totals; equal to the sum of their
// response record point deltas at all times, zeroed by the weekly reset.
type UserAggregate struct {
	UserID      int64
	TotalScore  int
	Correct     int
	Wrong       int
	Unattempted int
}

// GroupSubscription is a destination that receives broadcast quizzes.
// Groups are soft-deactivated, never deleted.
type GroupSubscription struct {
	ID             int64
	Title          string
	Type           string
	Active         bool
	RepliesEnabled bool
	Language       string
}

// LeaderboardRow is one ranked entry of a per-group or global leaderboard.
type LeaderboardRow struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Correct     int    `json:"correct"`
	Wrong       int    `json:"wrong"`
	Unattempted int    `json:"unattempted"`
}

// TranslatedQuiz holds the translated question and options for one
// (quiz, language) cache key.
type TranslatedQuiz struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Stats summarizes store contents for the hub stats query.
type Stats struct {
	Users   int
	Groups  int
	Quizzes int
	Answers int
}

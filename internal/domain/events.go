package domain

// Event is a gateway-delivered occurrence routed by the pipeline dispatcher.
// The set of kinds is closed: question posted to the hub, a textual reply,
// a slash command, a poll answer, and group membership activity.
type Event interface {
	event()
}

// QuestionPosted is emitted when a poll-like question appears in a chat.
// CorrectOption is nil when the platform did not report a correct option.
type QuestionPosted struct {
	ChatID        int64
	MessageID     int
	Question      string
	Options       []string
	CorrectOption *int
	Explanation   string
}

// ReplyReceived is emitted for a plain text message that replies to another message.
type ReplyReceived struct {
	ChatID           int64
	MessageID        int
	ReplyToMessageID int
	Text             string
	From             User
}

// CommandReceived is emitted for slash commands like /stats or /language.
type CommandReceived struct {
	ChatID  int64
	Command string
	Args    string
	From    User
}

// PollAnswered is emitted when a user answers (or retracts an answer to) a poll.
type PollAnswered struct {
	PollID   string
	From     User
	Selected []int
}

// GroupSeen is emitted on observed group activity: the bot being added to a
// group or a member interacting in one. From is zero when no user is involved.
type GroupSeen struct {
	Group GroupSubscription
	From  User
}

func (QuestionPosted) event()  {}
func (ReplyReceived) event()   {}
func (CommandReceived) event() {}
func (PollAnswered) event()    {}
func (GroupSeen) event()       {}

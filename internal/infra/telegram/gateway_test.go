package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizrelay/internal/domain"
)

func TestMapUpdateQuizPoll(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: -100, Type: "channel"},
			Poll: &tgbotapi.Poll{
				ID:              "p1",
				Question:        "Capital of France?",
				Type:            "quiz",
				CorrectOptionID: 1,
				Explanation:     "Geography.",
				Options: []tgbotapi.PollOption{
					{Text: "London"}, {Text: "Paris"},
				},
			},
		},
	}

	events := mapUpdate(update)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d: %v", len(events), events)
	}
	posted, ok := events[0].(domain.QuestionPosted)
	if !ok {
		t.Fatalf("expected QuestionPosted, got %T", events[0])
	}
	if posted.ChatID != -100 || posted.MessageID != 10 || posted.Question != "Capital of France?" {
		t.Fatalf("unexpected event: %+v", posted)
	}
	if posted.CorrectOption == nil || *posted.CorrectOption != 1 {
		t.Fatalf("quiz poll should carry its correct option, got %v", posted.CorrectOption)
	}
	if len(posted.Options) != 2 || posted.Options[1] != "Paris" {
		t.Fatalf("options not mapped: %v", posted.Options)
	}
	if posted.Explanation != "Geography." {
		t.Fatalf("explanation not mapped: %q", posted.Explanation)
	}
}

func TestMapUpdateRegularPollHasNoCorrectOption(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 11,
			Chat:      &tgbotapi.Chat{ID: -100, Type: "channel"},
			Poll: &tgbotapi.Poll{
				ID:       "p2",
				Question: "Pick one",
				Type:     "regular",
				Options:  []tgbotapi.PollOption{{Text: "a"}, {Text: "b"}},
			},
		},
	}

	events := mapUpdate(update)
	posted, ok := events[0].(domain.QuestionPosted)
	if !ok {
		t.Fatalf("expected QuestionPosted, got %T", events[0])
	}
	if posted.CorrectOption != nil {
		t.Fatalf("regular polls must not report a correct option, got %d", *posted.CorrectOption)
	}
}

func TestMapUpdatePollAnswer(t *testing.T) {
	update := tgbotapi.Update{
		PollAnswer: &tgbotapi.PollAnswer{
			PollID:    "p1",
			User:      tgbotapi.User{ID: 7, UserName: "ada", FirstName: "Ada"},
			OptionIDs: []int{1},
		},
	}

	events := mapUpdate(update)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	answered, ok := events[0].(domain.PollAnswered)
	if !ok {
		t.Fatalf("expected PollAnswered, got %T", events[0])
	}
	if answered.PollID != "p1" || answered.From.ID != 7 || answered.From.FirstName != "Ada" {
		t.Fatalf("unexpected event: %+v", answered)
	}
	if len(answered.Selected) != 1 || answered.Selected[0] != 1 {
		t.Fatalf("selection not mapped: %v", answered.Selected)
	}
}

func TestMapUpdateGroupReplyEmitsBothEvents(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID:      20,
			Chat:           &tgbotapi.Chat{ID: -300, Type: "supergroup", Title: "Quiz Club"},
			From:           &tgbotapi.User{ID: 7, FirstName: "Ada"},
			Text:           "b",
			ReplyToMessage: &tgbotapi.Message{MessageID: 19},
		},
	}

	events := mapUpdate(update)
	if len(events) != 2 {
		t.Fatalf("expected GroupSeen and ReplyReceived, got %v", events)
	}
	seen, ok := events[0].(domain.GroupSeen)
	if !ok || seen.Group.ID != -300 || seen.Group.Title != "Quiz Club" || !seen.Group.Active {
		t.Fatalf("unexpected group event: %+v", events[0])
	}
	if seen.From.ID != 7 {
		t.Fatalf("group activity should carry the user: %+v", seen)
	}
	reply, ok := events[1].(domain.ReplyReceived)
	if !ok || reply.ReplyToMessageID != 19 || reply.Text != "b" {
		t.Fatalf("unexpected reply event: %+v", events[1])
	}
}

func TestMapUpdateCommand(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 21,
			Chat:      &tgbotapi.Chat{ID: -300, Type: "group"},
			From:      &tgbotapi.User{ID: 7},
			Text:      "/language hindi",
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: 9},
			},
		},
	}

	events := mapUpdate(update)
	if len(events) != 2 {
		t.Fatalf("expected GroupSeen and CommandReceived, got %v", events)
	}
	cmd, ok := events[1].(domain.CommandReceived)
	if !ok {
		t.Fatalf("expected CommandReceived, got %T", events[1])
	}
	if cmd.Command != "language" || cmd.Args != "hindi" {
		t.Fatalf("command not parsed: %+v", cmd)
	}
}

func TestMapUpdateBotMembership(t *testing.T) {
	added := tgbotapi.Update{
		MyChatMember: &tgbotapi.ChatMemberUpdated{
			Chat:          tgbotapi.Chat{ID: -400, Type: "supergroup", Title: "New Home"},
			NewChatMember: tgbotapi.ChatMember{Status: "member"},
		},
	}
	events := mapUpdate(added)
	seen, ok := events[0].(domain.GroupSeen)
	if !ok || !seen.Group.Active {
		t.Fatalf("joining a group should activate it: %+v", events)
	}

	kicked := tgbotapi.Update{
		MyChatMember: &tgbotapi.ChatMemberUpdated{
			Chat:          tgbotapi.Chat{ID: -400, Type: "supergroup"},
			NewChatMember: tgbotapi.ChatMember{Status: "kicked"},
		},
	}
	events = mapUpdate(kicked)
	seen, ok = events[0].(domain.GroupSeen)
	if !ok || seen.Group.Active {
		t.Fatalf("being kicked should deactivate the group: %+v", events)
	}
}

func TestMapUserNil(t *testing.T) {
	if u := mapUser(nil); u != (domain.User{}) {
		t.Fatalf("nil user should map to zero value, got %+v", u)
	}
}

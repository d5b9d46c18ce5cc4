package telegram

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizrelay/internal/domain"
)

// Gateway implements app.Gateway over the Telegram Bot API and adapts the
// update stream into domain events.
type Gateway struct {
	bot *tgbotapi.BotAPI
}

func New(token string) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Printf("telegram: authorized as @%s", bot.Self.UserName)
	return &Gateway{bot: bot}, nil
}

func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := g.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// SendQuizPoll posts a single-answer quiz poll. Non-anonymous is what makes
// individual responses attributable for scoring.
func (g *Gateway) SendQuizPoll(ctx context.Context, chatID int64, question string, options []string, correctOption int, explanation string) (domain.SentPoll, error) {
	poll := tgbotapi.NewPoll(chatID, question, options...)
	poll.Type = "quiz"
	poll.CorrectOptionID = int64(correctOption)
	poll.IsAnonymous = false
	if explanation != "" {
		poll.Explanation = explanation
	}

	sent, err := g.bot.Send(poll)
	if err != nil {
		return domain.SentPoll{}, fmt.Errorf("send poll to %d: %w", chatID, err)
	}
	if sent.Poll == nil {
		return domain.SentPoll{}, fmt.Errorf("send poll to %d: no poll in response", chatID)
	}
	return domain.SentPoll{PollID: sent.Poll.ID, MessageID: sent.MessageID}, nil
}

// Events starts long polling and returns the adapted event stream. The channel
// closes when ctx is done or Telegram stops delivering updates.
func (g *Gateway) Events(ctx context.Context) <-chan domain.Event {
	out := make(chan domain.Event, 64)
	go func() {
		defer close(out)
		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = 30
		updates := g.bot.GetUpdatesChan(cfg)
		for {
			select {
			case <-ctx.Done():
				g.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				for _, ev := range mapUpdate(update) {
					select {
					case out <- ev:
					case <-ctx.Done():
						g.bot.StopReceivingUpdates()
						return
					}
				}
			}
		}
	}()
	return out
}

// mapUpdate flattens one Telegram update into zero or more domain events.
func mapUpdate(update tgbotapi.Update) []domain.Event {
	var events []domain.Event

	if answer := update.PollAnswer; answer != nil {
		events = append(events, domain.PollAnswered{
			PollID:   answer.PollID,
			From:     mapUser(&answer.User),
			Selected: answer.OptionIDs,
		})
	}

	if member := update.MyChatMember; member != nil {
		status := member.NewChatMember.Status
		active := status == "member" || status == "administrator"
		events = append(events, domain.GroupSeen{
			Group: domain.GroupSubscription{
				ID:             member.Chat.ID,
				Title:          member.Chat.Title,
				Type:           member.Chat.Type,
				Active:         active,
				RepliesEnabled: true,
			},
		})
	}

	// Channel hubs deliver posts on a separate update field.
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return events
	}

	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		events = append(events, domain.GroupSeen{
			Group: domain.GroupSubscription{
				ID:             msg.Chat.ID,
				Title:          msg.Chat.Title,
				Type:           msg.Chat.Type,
				Active:         true,
				RepliesEnabled: true,
			},
			From: mapUser(msg.From),
		})
	}

	switch {
	case msg.Poll != nil:
		// Telegram only reports correct_option_id for quiz-type polls; regular
		// polls enter the reply-resolution flow instead.
		var correct *int
		if msg.Poll.Type == "quiz" {
			idx := msg.Poll.CorrectOptionID
			correct = &idx
		}
		options := make([]string, len(msg.Poll.Options))
		for i, opt := range msg.Poll.Options {
			options[i] = opt.Text
		}
		events = append(events, domain.QuestionPosted{
			ChatID:        msg.Chat.ID,
			MessageID:     msg.MessageID,
			Question:      msg.Poll.Question,
			Options:       options,
			CorrectOption: correct,
			Explanation:   msg.Poll.Explanation,
		})
	case msg.IsCommand():
		events = append(events, domain.CommandReceived{
			ChatID:  msg.Chat.ID,
			Command: msg.Command(),
			Args:    msg.CommandArguments(),
			From:    mapUser(msg.From),
		})
	case msg.ReplyToMessage != nil && msg.Text != "":
		events = append(events, domain.ReplyReceived{
			ChatID:           msg.Chat.ID,
			MessageID:        msg.MessageID,
			ReplyToMessageID: msg.ReplyToMessage.MessageID,
			Text:             msg.Text,
			From:             mapUser(msg.From),
		})
	}

	return events
}

func mapUser(u *tgbotapi.User) domain.User {
	if u == nil {
		return domain.User{}
	}
	return domain.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

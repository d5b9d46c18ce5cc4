package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"quizrelay/internal/domain"
)

// answerTokens maps curator reply tokens to option indexes. Letters and
// one-based digits are accepted interchangeably.
var answerTokens = map[string]int{
	"a": 0, "1": 0,
	"b": 1, "2": 1,
	"c": 2, "3": 2,
	"d": 3, "4": 3,
	"e": 4, "5": 4,
	"f": 5, "6": 5,
}

// HandleQuestion runs intake for a question posted to the hub. Questions from
// any other chat are ignored. Invalid input is logged and dropped, never
// persisted. A question with a known in-bounds correct option goes straight to
// scheduling; otherwise it is persisted unresolved and the hub is asked for a
// resolution reply.
func (p *Pipeline) HandleQuestion(ctx context.Context, ev domain.QuestionPosted) error {
	if ev.ChatID != p.hubChatID {
		return nil
	}
	if strings.TrimSpace(ev.Question) == "" || len(ev.Options) == 0 {
		log.Printf("intake: dropping invalid question (message %d): %v", ev.MessageID, domain.ErrInvalidQuiz)
		return nil
	}

	quiz := domain.Quiz{
		HubChatID:     ev.ChatID,
		MessageID:     ev.MessageID,
		Question:      ev.Question,
		Options:       ev.Options,
		CorrectOption: domain.UnresolvedOption,
		Explanation:   ev.Explanation,
		State:         domain.QuizReceived,
		CreatedAt:     p.now(),
	}

	if ev.CorrectOption != nil {
		if !quiz.ValidOption(*ev.CorrectOption) {
			log.Printf("intake: dropping question (message %d): correct option %d out of range for %d options",
				ev.MessageID, *ev.CorrectOption, len(ev.Options))
			return nil
		}
		quiz.CorrectOption = *ev.CorrectOption
		quiz.State = domain.QuizResolved
	} else {
		quiz.State = domain.QuizAwaitingAnswer
	}

	if err := p.store.CreateQuiz(ctx, &quiz); err != nil {
		return fmt.Errorf("persist quiz: %w", err)
	}
	p.cacheQuiz(quiz)

	if quiz.State == domain.QuizAwaitingAnswer {
		text := fmt.Sprintf("❓ Quiz #%d needs its correct answer.\nReply to the question message with a letter (a-%c) or number (1-%d).",
			quiz.ID, 'a'+len(quiz.Options)-1, len(quiz.Options))
		if err := p.gateway.SendMessage(ctx, p.hubChatID, text); err != nil {
			log.Printf("intake: failed to request resolution for quiz %d: %v", quiz.ID, err)
		}
		return nil
	}

	log.Printf("intake: quiz %d resolved on arrival (option %d), scheduling broadcast", quiz.ID, quiz.CorrectOption)
	p.markScheduled(quiz.ID)
	p.scheduler.Schedule(quiz.ID)
	return nil
}

// HandleResolutionReply consumes a hub reply to an awaiting question. The
// reply must reference the exact originating message; the first recognized
// token wins. Repeated replies simply re-arm the broadcast timer, latest wins.
func (p *Pipeline) HandleResolutionReply(ctx context.Context, ev domain.ReplyReceived) error {
	if ev.ChatID != p.hubChatID {
		return nil
	}

	quiz, err := p.store.QuizByMessage(ctx, ev.ChatID, ev.ReplyToMessageID)
	if err != nil {
		// Not a reply to a tracked question; nothing to do.
		return nil
	}

	if quiz.State == domain.QuizBroadcast {
		log.Printf("intake: ignoring resolution reply for quiz %d, already broadcast", quiz.ID)
		return nil
	}

	idx, ok := parseAnswerToken(ev.Text)
	if !ok {
		return p.gateway.SendMessage(ctx, p.hubChatID,
			fmt.Sprintf("⚠️ Couldn't read an answer from that. Reply with a letter (a-%c) or number (1-%d).",
				'a'+len(quiz.Options)-1, len(quiz.Options)))
	}
	if !quiz.ValidOption(idx) {
		return p.gateway.SendMessage(ctx, p.hubChatID,
			fmt.Sprintf("⚠️ Option %d is out of range, this quiz has %d options. Reply with a letter (a-%c) or number (1-%d).",
				idx+1, len(quiz.Options), 'a'+len(quiz.Options)-1, len(quiz.Options)))
	}

	if err := p.store.UpdateQuizCorrectOption(ctx, quiz.ID, idx); err != nil {
		return fmt.Errorf("update quiz %d correct option: %w", quiz.ID, err)
	}
	quiz.CorrectOption = idx
	quiz.State = domain.QuizScheduled
	p.cacheQuiz(quiz)

	log.Printf("intake: quiz %d resolved to option %d by %s, (re)scheduling broadcast", quiz.ID, idx, ev.From.Name())
	p.scheduler.Schedule(quiz.ID)
	return nil
}

// parseAnswerToken scans the reply text for the first recognizable answer token.
func parseAnswerToken(text string) (int, bool) {
	for _, field := range strings.Fields(strings.ToLower(text)) {
		field = strings.Trim(field, ".,:;!()")
		if idx, ok := answerTokens[field]; ok {
			return idx, true
		}
	}
	return 0, false
}

func (p *Pipeline) markScheduled(quizID int64) {
	p.mu.Lock()
	if quiz, ok := p.quizzes[quizID]; ok {
		quiz.State = domain.QuizScheduled
		p.quizzes[quizID] = quiz
	}
	p.mu.Unlock()
}

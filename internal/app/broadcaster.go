package app

import (
	"context"
	"fmt"
	"log"

	"quizrelay/internal/domain"
)

// fireBroadcast is the scheduler's callback. Timer firings run outside any
// request context, so a fresh background context carries the fan-out.
func (p *Pipeline) fireBroadcast(quizID int64) {
	if err := p.Broadcast(context.Background(), quizID); err != nil {
		log.Printf("broadcast: quiz %d: %v", quizID, err)
	}
}

// Broadcast fans a resolved quiz out to every active subscriber group as a
// non-anonymous quiz poll, recording a poll mapping per successful send.
// Send and translation failures are per-group: log, skip, continue.
func (p *Pipeline) Broadcast(ctx context.Context, quizID int64) error {
	quiz, err := p.quizByID(ctx, quizID)
	if err != nil {
		return fmt.Errorf("load quiz: %w", err)
	}

	if quiz.State == domain.QuizBroadcast {
		log.Printf("broadcast: quiz %d already broadcast, skipping", quizID)
		return nil
	}

	if !quiz.Resolved() {
		log.Printf("broadcast: quiz %d still unresolved, aborting fan-out", quizID)
		if err := p.gateway.SendMessage(ctx, p.hubChatID,
			fmt.Sprintf("⚠️ Quiz #%d was never resolved, broadcast skipped. Reply to the question to resolve and re-arm it.", quizID)); err != nil {
			log.Printf("broadcast: hub warning failed: %v", err)
		}
		return nil
	}

	groups, err := p.store.ActiveGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	targets := groups[:0]
	for _, group := range groups {
		if group.ID == p.hubChatID {
			continue
		}
		targets = append(targets, group)
	}

	result := fanOut(ctx, targets, func(ctx context.Context, group domain.GroupSubscription) error {
		question, options := p.localizedQuiz(ctx, quiz, group.Language)
		sent, err := p.gateway.SendQuizPoll(ctx, group.ID, question, options, quiz.CorrectOption, quiz.Explanation)
		if err != nil {
			return err
		}
		mapping := domain.PollMapping{
			PollID:    sent.PollID,
			QuizID:    quiz.ID,
			GroupID:   group.ID,
			MessageID: sent.MessageID,
		}
		p.cachePollMapping(mapping)
		if err := p.store.SavePollMapping(ctx, mapping); err != nil {
			// The in-memory mapping still routes responses; persistence only
			// matters across restarts.
			log.Printf("broadcast: persist poll mapping %s (quiz %d, group %d): %v", sent.PollID, quiz.ID, group.ID, err)
		}
		return nil
	})

	for groupID, err := range result.Failed {
		log.Printf("broadcast: quiz %d to group %d failed: %v", quiz.ID, groupID, err)
	}

	if len(result.Succeeded) == 0 {
		// Nothing went out, so the quiz stays resolvable and re-armable.
		return p.gateway.SendMessage(ctx, p.hubChatID,
			fmt.Sprintf("⚠️ Quiz #%d reached no groups.", quiz.ID))
	}

	// Persist the transition: the correct option is frozen from here on, and
	// the resolution-reply guard reads this state from the store.
	quiz.State = domain.QuizBroadcast
	p.cacheQuiz(quiz)
	if err := p.store.UpdateQuizState(ctx, quiz.ID, domain.QuizBroadcast); err != nil {
		log.Printf("broadcast: persist state for quiz %d: %v", quiz.ID, err)
	}

	return p.gateway.SendMessage(ctx, p.hubChatID,
		fmt.Sprintf("✅ Quiz #%d sent to %d groups. Correct answer: %s.", quiz.ID, len(result.Succeeded), optionLetter(quiz.CorrectOption)))
}

// localizedQuiz returns the question and options in the group's preferred
// language, consulting the cache first and degrading to the original text when
// translation fails. Failure is per-group, never global.
func (p *Pipeline) localizedQuiz(ctx context.Context, quiz domain.Quiz, language string) (string, []string) {
	if language == "" || language == domain.DefaultLanguage || p.translator == nil {
		return quiz.Question, quiz.Options
	}

	if cached, ok := p.cache.Get(ctx, quiz.ID, language); ok {
		return cached.Question, cached.Options
	}

	key := fmt.Sprintf("%d:%s", quiz.ID, language)
	translated, err, _ := p.sf.Do(key, func() (interface{}, error) {
		// Re-check in case a concurrent fan-out filled the cache.
		if cached, ok := p.cache.Get(ctx, quiz.ID, language); ok {
			return cached, nil
		}
		out := domain.TranslatedQuiz{Options: make([]string, len(quiz.Options))}
		question, err := p.translator.Translate(ctx, quiz.Question, language)
		if err != nil {
			return domain.TranslatedQuiz{}, err
		}
		out.Question = question
		for i, option := range quiz.Options {
			text, err := p.translator.Translate(ctx, option, language)
			if err != nil {
				return domain.TranslatedQuiz{}, err
			}
			out.Options[i] = text
		}
		p.cache.Set(ctx, quiz.ID, language, out)
		return out, nil
	})
	if err != nil {
		log.Printf("broadcast: translating quiz %d to %s failed, using original: %v", quiz.ID, language, err)
		return quiz.Question, quiz.Options
	}
	t := translated.(domain.TranslatedQuiz)
	return t.Question, t.Options
}

func optionLetter(idx int) string {
	return string(rune('A' + idx))
}

package app

import (
	"context"
	"fmt"
	"log"

	"quizrelay/internal/domain"
)

// HandlePollAnswer converts a poll response event into a durable, idempotent
// score. Unknown polls are dropped. Only the first selected index counts;
// an empty selection is an explicit non-answer worth zero points.
func (p *Pipeline) HandlePollAnswer(ctx context.Context, ev domain.PollAnswered) error {
	mapping, err := p.pollMapping(ctx, ev.PollID)
	if err != nil {
		log.Printf("scorer: dropping answer for unknown poll %s from user %d", ev.PollID, ev.From.ID)
		return nil
	}

	quiz, err := p.quizByID(ctx, mapping.QuizID)
	if err != nil {
		return fmt.Errorf("load quiz %d: %w", mapping.QuizID, err)
	}

	selected := domain.NoSelection
	points := domain.PointsUnattempted
	if len(ev.Selected) > 0 {
		selected = ev.Selected[0]
		if selected == quiz.CorrectOption {
			points = domain.PointsCorrect
		} else {
			points = domain.PointsWrong
		}
	}

	if err := p.store.UpsertUser(ctx, ev.From); err != nil {
		return fmt.Errorf("upsert user %d: %w", ev.From.ID, err)
	}
	if err := p.store.AddGroupMember(ctx, ev.From.ID, mapping.GroupID); err != nil {
		return fmt.Errorf("add member %d to group %d: %w", ev.From.ID, mapping.GroupID, err)
	}

	inserted, err := p.store.RecordResponse(ctx, domain.ResponseRecord{
		UserID:         ev.From.ID,
		GroupID:        mapping.GroupID,
		QuizID:         quiz.ID,
		SelectedOption: selected,
		Points:         points,
		AnsweredAt:     p.now(),
	})
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	if !inserted {
		// Duplicate submission; store uniqueness already scored this triple.
		return nil
	}

	log.Printf("scorer: user %d scored %+d on quiz %d in group %d", ev.From.ID, points, quiz.ID, mapping.GroupID)
	p.sendScoreReply(ctx, mapping.GroupID, ev.From, points)
	return nil
}

// sendScoreReply posts a cosmetic congratulation or commiseration to the
// group when its replies flag is on. Failures here never roll back scoring.
func (p *Pipeline) sendScoreReply(ctx context.Context, groupID int64, user domain.User, points int) {
	if points == domain.PointsUnattempted {
		return
	}
	enabled, err := p.store.RepliesEnabled(ctx, groupID)
	if err != nil {
		log.Printf("scorer: replies flag for group %d: %v", groupID, err)
		return
	}
	if !enabled {
		return
	}

	var pool []string
	if points == domain.PointsCorrect {
		pool = correctReplies
	} else {
		pool = wrongReplies
	}
	text := fmt.Sprintf("[%s](tg://user?id=%d) %s", user.Name(), user.ID, pool[p.rnd.Intn(len(pool))])
	if err := p.gateway.SendMessage(ctx, groupID, text); err != nil {
		log.Printf("scorer: reply to group %d failed: %v", groupID, err)
	}
}

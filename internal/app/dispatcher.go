package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"quizrelay/internal/domain"
)

// Run consumes gateway events until ctx is done or the channel closes.
// Events are dispatched in arrival order from a single goroutine; the only
// concurrent actors are scheduler firings and the recurring jobs, which share
// state through the store and the pipeline's guarded maps.
func (p *Pipeline) Run(ctx context.Context, events <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.dispatch(ctx, ev)
		}
	}
}

// dispatch routes one event to its state-machine transition. All related
// transitions live here rather than in scattered per-type registrations.
func (p *Pipeline) dispatch(ctx context.Context, ev domain.Event) {
	var err error
	switch ev := ev.(type) {
	case domain.QuestionPosted:
		err = p.HandleQuestion(ctx, ev)
	case domain.ReplyReceived:
		err = p.HandleResolutionReply(ctx, ev)
	case domain.CommandReceived:
		err = p.HandleCommand(ctx, ev)
	case domain.PollAnswered:
		err = p.HandlePollAnswer(ctx, ev)
	case domain.GroupSeen:
		err = p.HandleGroupSeen(ctx, ev)
	default:
		log.Printf("dispatch: unhandled event %T", ev)
	}
	if err != nil {
		log.Printf("dispatch: %T: %v", ev, err)
	}
}

// HandleGroupSeen records group activity: the subscription row is upserted and,
// when a user was involved, their membership is recorded too.
func (p *Pipeline) HandleGroupSeen(ctx context.Context, ev domain.GroupSeen) error {
	if ev.Group.ID == p.hubChatID {
		return nil
	}
	if err := p.store.UpsertGroup(ctx, ev.Group); err != nil {
		return fmt.Errorf("upsert group %d: %w", ev.Group.ID, err)
	}
	if ev.From.ID == 0 {
		return nil
	}
	if err := p.store.UpsertUser(ctx, ev.From); err != nil {
		return fmt.Errorf("upsert user %d: %w", ev.From.ID, err)
	}
	return p.store.AddGroupMember(ctx, ev.From.ID, ev.Group.ID)
}

// HandleCommand serves the narrow command surface the core needs: stats for
// the hub, per-group toggles, and leaderboard reads.
func (p *Pipeline) HandleCommand(ctx context.Context, ev domain.CommandReceived) error {
	switch ev.Command {
	case "stats":
		if ev.ChatID != p.hubChatID {
			return nil
		}
		stats, err := p.store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return p.gateway.SendMessage(ctx, ev.ChatID, fmt.Sprintf(
			"📊 *Bot Statistics*\n\n👥 Users: %d\n🏢 Groups: %d\n❓ Quizzes: %d\n✏️ Answers: %d",
			stats.Users, stats.Groups, stats.Quizzes, stats.Answers))

	case "replies":
		arg := strings.ToLower(strings.TrimSpace(ev.Args))
		if arg != "on" && arg != "off" {
			return p.gateway.SendMessage(ctx, ev.ChatID, "Usage: /replies on|off")
		}
		if err := p.store.SetRepliesEnabled(ctx, ev.ChatID, arg == "on"); err != nil {
			return fmt.Errorf("set replies flag: %w", err)
		}
		return p.gateway.SendMessage(ctx, ev.ChatID, fmt.Sprintf("Score replies turned %s for this group.", arg))

	case "language":
		lang := strings.ToLower(strings.TrimSpace(ev.Args))
		if lang == "" {
			return p.gateway.SendMessage(ctx, ev.ChatID, "Usage: /language <name>, e.g. /language hindi")
		}
		if err := p.store.SetGroupLanguage(ctx, ev.ChatID, lang); err != nil {
			return fmt.Errorf("set group language: %w", err)
		}
		return p.gateway.SendMessage(ctx, ev.ChatID, fmt.Sprintf("Quizzes for this group will be sent in %s.", lang))

	case "leaderboard":
		rows, err := p.store.GroupLeaderboard(ctx, ev.ChatID)
		if err != nil {
			return fmt.Errorf("group leaderboard: %w", err)
		}
		if len(rows) == 0 {
			return p.gateway.SendMessage(ctx, ev.ChatID, "No scored answers in this group yet.")
		}
		return p.gateway.SendMessage(ctx, ev.ChatID, formatGroupLeaderboard("", rows, p.now()))

	case "rank":
		rank, err := p.store.GlobalRank(ctx, ev.From.ID)
		if err != nil {
			return fmt.Errorf("global rank: %w", err)
		}
		return p.gateway.SendMessage(ctx, ev.ChatID,
			fmt.Sprintf("[%s](tg://user?id=%d), your universal rank is #%d.", ev.From.Name(), ev.From.ID, rank))
	}
	return nil
}

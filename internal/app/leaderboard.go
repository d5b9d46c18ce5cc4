package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"quizrelay/internal/domain"
)

// GlobalLeaderboardSize is how many rows the daily universal leaderboard shows.
const GlobalLeaderboardSize = 50

// GroupLeaderboard returns the ranked rows for one group: score descending,
// ties broken by correct-answer count descending.
func (p *Pipeline) GroupLeaderboard(ctx context.Context, groupID int64) ([]domain.LeaderboardRow, error) {
	return p.store.GroupLeaderboard(ctx, groupID)
}

// GlobalLeaderboard returns the top-limit users with nonzero total score.
func (p *Pipeline) GlobalLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return p.store.GlobalLeaderboard(ctx, limit)
}

// GlobalRank returns a user's 1-based rank: users with strictly greater total
// score, plus one. Tied users get consecutive ranks; that is documented
// behavior, not a defect.
func (p *Pipeline) GlobalRank(ctx context.Context, userID int64) (int, error) {
	return p.store.GlobalRank(ctx, userID)
}

// ResetWeek zeroes every user's aggregate and deletes all response records.
// Hard and irreversible; quizzes and group subscriptions survive.
func (p *Pipeline) ResetWeek(ctx context.Context) error {
	if err := p.store.ResetAggregates(ctx); err != nil {
		return fmt.Errorf("weekly reset: %w", err)
	}
	log.Printf("leaderboard: weekly reset completed")
	return nil
}

// SendDailySummaries posts each active non-hub group its leaderboard followed
// by the global top-50, skipping groups with no recorded activity.
func (p *Pipeline) SendDailySummaries(ctx context.Context) error {
	groups, err := p.store.ActiveGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	global, err := p.store.GlobalLeaderboard(ctx, GlobalLeaderboardSize)
	if err != nil {
		return fmt.Errorf("global leaderboard: %w", err)
	}

	for _, group := range groups {
		if group.ID == p.hubChatID {
			continue
		}
		rows, err := p.store.GroupLeaderboard(ctx, group.ID)
		if err != nil {
			log.Printf("leaderboard: group %d: %v", group.ID, err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		if err := p.gateway.SendMessage(ctx, group.ID, formatGroupLeaderboard(group.Title, rows, p.now())); err != nil {
			log.Printf("leaderboard: sending to group %d failed: %v", group.ID, err)
			continue
		}
		if len(global) > 0 {
			if err := p.gateway.SendMessage(ctx, group.ID, formatGlobalLeaderboard(global, p.now())); err != nil {
				log.Printf("leaderboard: global board to group %d failed: %v", group.ID, err)
			}
		}
	}
	return nil
}

func formatGroupLeaderboard(title string, rows []domain.LeaderboardRow, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 *Daily Group Leaderboard - %s*\n📅 %s\n\n", title, now.Format("2006-01-02"))
	for i, row := range rows {
		fmt.Fprintf(&b, "%s [%s](tg://user?id=%d) - %d pts\n   ✅ %d | ❌ %d | ⭕ %d\n\n",
			rankBadge(i+1), row.Name, row.UserID, row.Score, row.Correct, row.Wrong, row.Unattempted)
	}
	return b.String()
}

func formatGlobalLeaderboard(rows []domain.LeaderboardRow, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌍 *Universal Leaderboard (Top %d)*\n📅 %s\n\n", GlobalLeaderboardSize, now.Format("2006-01-02"))
	for i, row := range rows {
		fmt.Fprintf(&b, "%s [%s](tg://user?id=%d) - %d pts\n", rankBadge(i+1), row.Name, row.UserID, row.Score)
	}
	return b.String()
}

func rankBadge(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}

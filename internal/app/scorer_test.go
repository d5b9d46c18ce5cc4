package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"quizrelay/internal/app"
	"quizrelay/internal/domain"
)

// broadcastQuiz drives a resolved quiz through intake and fan-out, returning
// the poll ids per group so scoring tests can answer them.
func broadcastQuiz(t *testing.T, env *testEnv, messageID, correct, groups int) map[int64]string {
	t.Helper()
	ctx := context.Background()
	if err := env.pipeline.HandleQuestion(ctx, domain.QuestionPosted{
		ChatID:        testHubChatID,
		MessageID:     messageID,
		Question:      "Pick one",
		Options:       []string{"alpha", "beta", "gamma"},
		CorrectOption: intPtr(correct),
	}); err != nil {
		t.Fatalf("handle question: %v", err)
	}
	before := len(env.gateway.sentPolls())
	msgsBefore := len(env.gateway.sentMessages())
	waitFor(t, time.Second, func() bool { return env.gateway.pollCount() >= before+groups })
	// The hub summary lands after the last send; wait so callers see a quiet gateway.
	waitFor(t, time.Second, func() bool { return len(env.gateway.sentMessages()) > msgsBefore })

	pollByGroup := make(map[int64]string)
	for _, poll := range env.gateway.sentPolls()[before:] {
		pollByGroup[poll.ChatID] = poll.PollID
	}
	return pollByGroup
}

func TestScoringCorrectWrongUnattempted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond)
	env.addGroup(t, 501, "")
	polls := broadcastQuiz(t, env, 70, 1, 1)

	answer := func(userID int64, selected []int) {
		t.Helper()
		err := env.pipeline.HandlePollAnswer(ctx, domain.PollAnswered{
			PollID:   polls[501],
			From:     domain.User{ID: userID, FirstName: "User"},
			Selected: selected,
		})
		if err != nil {
			t.Fatalf("answer from %d: %v", userID, err)
		}
	}

	answer(1, []int{1})      // correct
	answer(2, []int{0})      // wrong
	answer(3, []int{})       // retracted, counts as unattempted

	if agg := env.store.Aggregate(1); agg.TotalScore != domain.PointsCorrect || agg.Correct != 1 {
		t.Fatalf("correct answer aggregate: %+v", agg)
	}
	if agg := env.store.Aggregate(2); agg.TotalScore != domain.PointsWrong || agg.Wrong != 1 {
		t.Fatalf("wrong answer aggregate: %+v", agg)
	}
	if agg := env.store.Aggregate(3); agg.TotalScore != 0 || agg.Unattempted != 1 {
		t.Fatalf("unattempted aggregate: %+v", agg)
	}
}

func TestDuplicateAnswerScoresOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond)
	env.addGroup(t, 502, "")
	polls := broadcastQuiz(t, env, 71, 0, 1)

	ev := domain.PollAnswered{
		PollID:   polls[502],
		From:     domain.User{ID: 5, FirstName: "Eve"},
		Selected: []int{0},
	}
	for i := 0; i < 3; i++ {
		if err := env.pipeline.HandlePollAnswer(ctx, ev); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	if agg := env.store.Aggregate(5); agg.TotalScore != domain.PointsCorrect {
		t.Fatalf("duplicates must not re-score: %+v", agg)
	}
	if n := env.store.ResponseCount(); n != 1 {
		t.Fatalf("expected one response record, got %d", n)
	}
}

func TestUnknownPollDropped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	err := env.pipeline.HandlePollAnswer(ctx, domain.PollAnswered{
		PollID:   "never-sent",
		From:     domain.User{ID: 6},
		Selected: []int{0},
	})
	if err != nil {
		t.Fatalf("unknown poll should be dropped, got %v", err)
	}
	if n := env.store.ResponseCount(); n != 0 {
		t.Fatalf("unknown poll produced %d records", n)
	}
}

func TestScoreReplyRespectsGroupFlag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond)
	env.addGroup(t, 503, "")
	polls := broadcastQuiz(t, env, 72, 0, 1)

	before := len(env.gateway.sentMessages())
	if err := env.pipeline.HandlePollAnswer(ctx, domain.PollAnswered{
		PollID:   polls[503],
		From:     domain.User{ID: 7, FirstName: "Grace"},
		Selected: []int{0},
	}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	replies := env.gateway.sentMessages()[before:]
	if len(replies) != 1 || replies[0].ChatID != 503 {
		t.Fatalf("expected one score reply in group 503, got %v", replies)
	}
	if !strings.Contains(replies[0].Text, "tg://user?id=7") {
		t.Fatalf("reply should mention the user: %q", replies[0].Text)
	}

	if err := env.store.SetRepliesEnabled(ctx, 503, false); err != nil {
		t.Fatalf("disable replies: %v", err)
	}
	before = len(env.gateway.sentMessages())
	if err := env.pipeline.HandlePollAnswer(ctx, domain.PollAnswered{
		PollID:   polls[503],
		From:     domain.User{ID: 8, FirstName: "Heidi"},
		Selected: []int{0},
	}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got := env.gateway.sentMessages()[before:]; len(got) != 0 {
		t.Fatalf("replies disabled but group still got %v", got)
	}
}

func TestScoringSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond)
	env.addGroup(t, 506, "")
	polls := broadcastQuiz(t, env, 75, 1, 1)

	// A fresh pipeline over the same store starts with empty in-process
	// caches; quiz and poll mapping must come back via the store.
	restarted := app.NewPipeline(env.store, env.gateway, env.translator, env.cache, app.Options{
		HubChatID:      testHubChatID,
		BroadcastDelay: 10 * time.Millisecond,
	})
	t.Cleanup(restarted.Close)

	if err := restarted.HandlePollAnswer(ctx, domain.PollAnswered{
		PollID:   polls[506],
		From:     domain.User{ID: 11, FirstName: "Judy"},
		Selected: []int{1},
	}); err != nil {
		t.Fatalf("answer after restart: %v", err)
	}
	if agg := env.store.Aggregate(11); agg.TotalScore != domain.PointsCorrect || agg.Correct != 1 {
		t.Fatalf("restarted pipeline failed to score: %+v", agg)
	}
	if n := env.store.ResponseCount(); n != 1 {
		t.Fatalf("expected one response record, got %d", n)
	}
}

func TestAggregateMatchesResponseDeltas(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond)
	env.addGroup(t, 504, "")
	env.addGroup(t, 505, "")

	first := broadcastQuiz(t, env, 73, 2, 2)
	second := broadcastQuiz(t, env, 74, 0, 2)

	answers := []struct {
		pollID   string
		selected []int
	}{
		{first[504], []int{2}},  // +4
		{first[505], []int{0}},  // -1
		{second[504], []int{0}}, // +4
		{second[505], []int{}},  // 0
	}
	for _, a := range answers {
		if err := env.pipeline.HandlePollAnswer(ctx, domain.PollAnswered{
			PollID:   a.pollID,
			From:     domain.User{ID: 9, FirstName: "Ivan"},
			Selected: a.selected,
		}); err != nil {
			t.Fatalf("answer %s: %v", a.pollID, err)
		}
	}

	agg := env.store.Aggregate(9)
	want := domain.PointsCorrect + domain.PointsWrong + domain.PointsCorrect + domain.PointsUnattempted
	if agg.TotalScore != want {
		t.Fatalf("aggregate %d != sum of deltas %d", agg.TotalScore, want)
	}
	if agg.Correct != 2 || agg.Wrong != 1 || agg.Unattempted != 1 {
		t.Fatalf("unexpected counters: %+v", agg)
	}
}

package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"quizrelay/internal/domain"
)

func TestRunDispatchesEventsInOrder(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan domain.Event, 4)
	done := make(chan error, 1)
	go func() { done <- env.pipeline.Run(ctx, events) }()

	events <- domain.GroupSeen{
		Group: domain.GroupSubscription{ID: 801, Title: "Chess Club", Type: "supergroup", Active: true},
		From:  domain.User{ID: 1, FirstName: "Ada"},
	}
	events <- domain.QuestionPosted{
		ChatID:    testHubChatID,
		MessageID: 90,
		Question:  "Pick one",
		Options:   []string{"alpha", "beta"},
	}

	waitFor(t, time.Second, func() bool {
		_, err := env.store.QuizByMessage(context.Background(), testHubChatID, 90)
		return err == nil
	})

	groups, err := env.store.ActiveGroups(context.Background())
	if err != nil || len(groups) != 1 || groups[0].ID != 801 {
		t.Fatalf("group not registered: %v %v", groups, err)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	events := make(chan domain.Event)
	close(events)
	if err := env.pipeline.Run(context.Background(), events); err != nil {
		t.Fatalf("closed channel should end the loop cleanly, got %v", err)
	}
}

func TestGroupSeenIgnoresHub(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	err := env.pipeline.HandleGroupSeen(ctx, domain.GroupSeen{
		Group: domain.GroupSubscription{ID: testHubChatID, Title: "Hub", Active: true},
	})
	if err != nil {
		t.Fatalf("handle group seen: %v", err)
	}
	groups, _ := env.store.ActiveGroups(ctx)
	if len(groups) != 0 {
		t.Fatalf("hub must never become a broadcast target: %v", groups)
	}
}

func TestStatsCommandHubOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.addGroup(t, 810, "")

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  810,
		Command: "stats",
	}); err != nil {
		t.Fatalf("stats in group: %v", err)
	}
	if len(env.gateway.sentMessages()) != 0 {
		t.Fatalf("stats outside the hub should be ignored, got %v", env.gateway.sentMessages())
	}

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  testHubChatID,
		Command: "stats",
	}); err != nil {
		t.Fatalf("stats in hub: %v", err)
	}
	msg := env.gateway.lastMessage()
	if msg.ChatID != testHubChatID || !strings.Contains(msg.Text, "Groups: 1") {
		t.Fatalf("unexpected stats message: %+v", msg)
	}
}

func TestRepliesCommand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.addGroup(t, 811, "")

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  811,
		Command: "replies",
		Args:    "off",
	}); err != nil {
		t.Fatalf("replies off: %v", err)
	}
	enabled, err := env.store.RepliesEnabled(ctx, 811)
	if err != nil || enabled {
		t.Fatalf("replies should be off: %v %v", enabled, err)
	}

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  811,
		Command: "replies",
		Args:    "sideways",
	}); err != nil {
		t.Fatalf("replies usage: %v", err)
	}
	if msg := env.gateway.lastMessage(); !strings.Contains(msg.Text, "Usage: /replies") {
		t.Fatalf("expected usage hint, got %q", msg.Text)
	}
}

func TestLanguageCommand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.addGroup(t, 812, "")

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  812,
		Command: "language",
		Args:    "Tamil",
	}); err != nil {
		t.Fatalf("language: %v", err)
	}
	lang, err := env.store.GroupLanguage(ctx, 812)
	if err != nil || lang != "tamil" {
		t.Fatalf("language not stored lowercased: %q %v", lang, err)
	}
}

func TestRankCommand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond)
	env.addGroup(t, 813, "")

	polls := broadcastQuiz(t, env, 95, 0, 1)
	if err := env.pipeline.HandlePollAnswer(ctx, domain.PollAnswered{
		PollID:   polls[813],
		From:     domain.User{ID: 21, FirstName: "Nina"},
		Selected: []int{0},
	}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  813,
		Command: "rank",
		From:    domain.User{ID: 21, FirstName: "Nina"},
	}); err != nil {
		t.Fatalf("rank: %v", err)
	}
	if msg := env.gateway.lastMessage(); !strings.Contains(msg.Text, "rank is #1") {
		t.Fatalf("unexpected rank message: %q", msg.Text)
	}
}

func TestLeaderboardCommandEmptyGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.addGroup(t, 814, "")

	if err := env.pipeline.HandleCommand(ctx, domain.CommandReceived{
		ChatID:  814,
		Command: "leaderboard",
	}); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if msg := env.gateway.lastMessage(); !strings.Contains(msg.Text, "No scored answers") {
		t.Fatalf("unexpected message: %q", msg.Text)
	}
}

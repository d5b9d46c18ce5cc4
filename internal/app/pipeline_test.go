package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"quizrelay/internal/app"
	"quizrelay/internal/domain"
	"quizrelay/internal/infra/memory"
)

const testHubChatID int64 = -100

type sentMessage struct {
	ChatID int64
	Text   string
}

type sentQuizPoll struct {
	ChatID        int64
	Question      string
	Options       []string
	CorrectOption int
	Explanation   string
	PollID        string
}

// fakeGateway records outbound traffic and can be told to fail sends per chat.
type fakeGateway struct {
	mu         sync.Mutex
	messages   []sentMessage
	polls      []sentQuizPoll
	failPolls  map[int64]error
	nextPollID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failPolls: make(map[int64]error)}
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (g *fakeGateway) SendQuizPoll(_ context.Context, chatID int64, question string, options []string, correctOption int, explanation string) (domain.SentPoll, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failPolls[chatID]; ok {
		return domain.SentPoll{}, err
	}
	g.nextPollID++
	pollID := fmt.Sprintf("poll-%d", g.nextPollID)
	g.polls = append(g.polls, sentQuizPoll{
		ChatID:        chatID,
		Question:      question,
		Options:       append([]string(nil), options...),
		CorrectOption: correctOption,
		Explanation:   explanation,
		PollID:        pollID,
	})
	return domain.SentPoll{PollID: pollID, MessageID: 1000 + g.nextPollID}, nil
}

func (g *fakeGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.polls)
}

func (g *fakeGateway) sentPolls() []sentQuizPoll {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentQuizPoll(nil), g.polls...)
}

func (g *fakeGateway) sentMessages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.messages...)
}

func (g *fakeGateway) lastMessage() sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.messages) == 0 {
		return sentMessage{}
	}
	return g.messages[len(g.messages)-1]
}

// fakeTranslator tags text with the target language and can fail per language.
type fakeTranslator struct {
	mu    sync.Mutex
	fail  map[string]error
	calls int
}

func newFakeTranslator() *fakeTranslator {
	return &fakeTranslator{fail: make(map[string]error)}
}

func (tr *fakeTranslator) Translate(_ context.Context, text, targetLanguage string) (string, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls++
	if err, ok := tr.fail[targetLanguage]; ok {
		return "", err
	}
	return "[" + targetLanguage + "] " + text, nil
}

type testEnv struct {
	pipeline   *app.Pipeline
	store      *memory.Store
	gateway    *fakeGateway
	translator *fakeTranslator
	cache      *memory.TranslationCache
}

func newTestEnv(t *testing.T, delay time.Duration) *testEnv {
	t.Helper()
	store := memory.NewStore()
	gateway := newFakeGateway()
	translator := newFakeTranslator()
	cache := memory.NewTranslationCache()
	pipeline := app.NewPipeline(store, gateway, translator, cache, app.Options{
		HubChatID:      testHubChatID,
		BroadcastDelay: delay,
	})
	t.Cleanup(pipeline.Close)
	return &testEnv{pipeline: pipeline, store: store, gateway: gateway, translator: translator, cache: cache}
}

func (e *testEnv) addGroup(t *testing.T, id int64, language string) {
	t.Helper()
	err := e.store.UpsertGroup(context.Background(), domain.GroupSubscription{
		ID:             id,
		Title:          fmt.Sprintf("Group %d", id),
		Type:           "supergroup",
		Active:         true,
		RepliesEnabled: true,
		Language:       language,
	})
	if err != nil {
		t.Fatalf("seed group %d: %v", id, err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func intPtr(v int) *int { return &v }

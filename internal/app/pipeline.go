package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizrelay/internal/domain"
)

// Store abstracts the persistence collaborator. Uniqueness of
// (user, quiz, group) response records is the store's responsibility and the
// sole concurrency-correctness mechanism for scoring.
type Store interface {
	UpsertUser(ctx context.Context, user domain.User) error
	UpsertGroup(ctx context.Context, group domain.GroupSubscription) error
	AddGroupMember(ctx context.Context, userID, groupID int64) error

	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	UpdateQuizCorrectOption(ctx context.Context, quizID int64, option int) error
	UpdateQuizState(ctx context.Context, quizID int64, state domain.QuizState) error
	QuizByID(ctx context.Context, quizID int64) (domain.Quiz, error)
	QuizByMessage(ctx context.Context, chatID int64, messageID int) (domain.Quiz, error)

	SavePollMapping(ctx context.Context, mapping domain.PollMapping) error
	PollMapping(ctx context.Context, pollID string) (domain.PollMapping, error)

	// RecordResponse persists the record and, when it is new, applies its point
	// delta to the user's aggregate. Returns false for duplicates.
	RecordResponse(ctx context.Context, record domain.ResponseRecord) (bool, error)

	ActiveGroups(ctx context.Context) ([]domain.GroupSubscription, error)
	GroupLanguage(ctx context.Context, groupID int64) (string, error)
	SetGroupLanguage(ctx context.Context, groupID int64, language string) error
	RepliesEnabled(ctx context.Context, groupID int64) (bool, error)
	SetRepliesEnabled(ctx context.Context, groupID int64, enabled bool) error

	GroupLeaderboard(ctx context.Context, groupID int64) ([]domain.LeaderboardRow, error)
	GlobalLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
	GlobalRank(ctx context.Context, userID int64) (int, error)
	ResetAggregates(ctx context.Context) error
	Stats(ctx context.Context) (domain.Stats, error)
}

// Gateway abstracts the messaging collaborator.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendQuizPoll(ctx context.Context, chatID int64, question string, options []string, correctOption int, explanation string) (domain.SentPoll, error)
}

// Translator abstracts the translation collaborator; it may fail, in which
// case the broadcaster falls back to the original language per group.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// TranslationCache stores translated quizzes keyed by (quiz, language).
// Implementations are caches: lookups may miss, writes are best-effort.
type TranslationCache interface {
	Get(ctx context.Context, quizID int64, language string) (domain.TranslatedQuiz, bool)
	Set(ctx context.Context, quizID int64, language string, translated domain.TranslatedQuiz)
}

// Pipeline is the quiz distribution and scoring core: intake, delayed
// broadcast, fan-out, response scoring, and leaderboard aggregation.
type Pipeline struct {
	store      Store
	gateway    Gateway
	translator Translator
	cache      TranslationCache
	scheduler  *scheduler

	hubChatID int64
	now       func() time.Time
	rnd       *rand.Rand
	sf        singleflight.Group

	mu       sync.RWMutex
	quizzes  map[int64]domain.Quiz
	pollMaps map[string]domain.PollMapping
}

// Options tunes the pipeline; zero values fall back to defaults.
type Options struct {
	HubChatID      int64
	BroadcastDelay time.Duration
	Clock          func() time.Time
}

// DefaultBroadcastDelay is the grace window between a quiz resolving and its
// fan-out, giving curators a chance to correct a mis-set answer.
const DefaultBroadcastDelay = 30 * time.Second

// NewPipeline wires the core against its collaborators. translator may be nil
// when translation is not configured; groups then always get the original text.
func NewPipeline(store Store, gateway Gateway, translator Translator, cache TranslationCache, opts Options) *Pipeline {
	if opts.BroadcastDelay <= 0 {
		opts.BroadcastDelay = DefaultBroadcastDelay
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	p := &Pipeline{
		store:      store,
		gateway:    gateway,
		translator: translator,
		cache:      cache,
		hubChatID:  opts.HubChatID,
		now:        opts.Clock,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes:    make(map[int64]domain.Quiz),
		pollMaps:   make(map[string]domain.PollMapping),
	}
	p.scheduler = newScheduler(opts.BroadcastDelay, p.fireBroadcast)
	return p
}

// Close stops any armed broadcast timers.
func (p *Pipeline) Close() {
	p.scheduler.StopAll()
}

func (p *Pipeline) cacheQuiz(quiz domain.Quiz) {
	p.mu.Lock()
	p.quizzes[quiz.ID] = quiz
	p.mu.Unlock()
}

// quizByID checks the in-process cache and falls back to the store, so
// in-flight quizzes survive a restart.
func (p *Pipeline) quizByID(ctx context.Context, quizID int64) (domain.Quiz, error) {
	p.mu.RLock()
	quiz, ok := p.quizzes[quizID]
	p.mu.RUnlock()
	if ok {
		return quiz, nil
	}
	quiz, err := p.store.QuizByID(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	p.cacheQuiz(quiz)
	return quiz, nil
}

func (p *Pipeline) cachePollMapping(mapping domain.PollMapping) {
	p.mu.Lock()
	p.pollMaps[mapping.PollID] = mapping
	p.mu.Unlock()
}

// pollMapping resolves a poll identifier via the in-process map, falling back
// to the persisted mapping so responses survive a restart.
func (p *Pipeline) pollMapping(ctx context.Context, pollID string) (domain.PollMapping, error) {
	p.mu.RLock()
	mapping, ok := p.pollMaps[pollID]
	p.mu.RUnlock()
	if ok {
		return mapping, nil
	}
	mapping, err := p.store.PollMapping(ctx, pollID)
	if err != nil {
		return domain.PollMapping{}, err
	}
	p.cachePollMapping(mapping)
	return mapping, nil
}

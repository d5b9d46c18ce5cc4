package memory

import (
	"context"
	"sort"
	"sync"

	"quizrelay/internal/domain"
)

type responseKey struct {
	userID  int64
	quizID  int64
	groupID int64
}

type messageKey struct {
	chatID    int64
	messageID int
}

// Store is an in-memory implementation of app.Store, used by tests and by the
// start command when no Postgres URL is configured.
type Store struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	aggregates map[int64]*domain.UserAggregate
	groups     map[int64]domain.GroupSubscription
	members    map[int64]map[int64]struct{}
	quizzes    map[int64]domain.Quiz
	byMessage  map[messageKey]int64
	pollMaps   map[string]domain.PollMapping
	responses  map[responseKey]domain.ResponseRecord
	nextQuizID int64
}

func NewStore() *Store {
	return &Store{
		users:      make(map[int64]domain.User),
		aggregates: make(map[int64]*domain.UserAggregate),
		groups:     make(map[int64]domain.GroupSubscription),
		members:    make(map[int64]map[int64]struct{}),
		quizzes:    make(map[int64]domain.Quiz),
		byMessage:  make(map[messageKey]int64),
		pollMaps:   make(map[string]domain.PollMapping),
		responses:  make(map[responseKey]domain.ResponseRecord),
	}
}

func (s *Store) UpsertUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	if _, ok := s.aggregates[user.ID]; !ok {
		s.aggregates[user.ID] = &domain.UserAggregate{UserID: user.ID}
	}
	return nil
}

func (s *Store) UpsertGroup(_ context.Context, group domain.GroupSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.groups[group.ID]; ok {
		// Later activity refreshes title/type/liveness but never clobbers the
		// group's stored preferences.
		existing.Title = group.Title
		existing.Type = group.Type
		existing.Active = group.Active
		s.groups[group.ID] = existing
		return nil
	}
	if group.Language == "" {
		group.Language = domain.DefaultLanguage
	}
	s.groups[group.ID] = group
	return nil
}

func (s *Store) AddGroupMember(_ context.Context, userID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[int64]struct{})
	}
	s.members[groupID][userID] = struct{}{}
	return nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuizID++
	quiz.ID = s.nextQuizID
	s.quizzes[quiz.ID] = *quiz
	s.byMessage[messageKey{quiz.HubChatID, quiz.MessageID}] = quiz.ID
	return nil
}

func (s *Store) UpdateQuizCorrectOption(_ context.Context, quizID int64, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.CorrectOption = option
	quiz.State = domain.QuizResolved
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) UpdateQuizState(_ context.Context, quizID int64, state domain.QuizState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.State = state
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) QuizByID(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) QuizByMessage(_ context.Context, chatID int64, messageID int) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byMessage[messageKey{chatID, messageID}]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return s.quizzes[id], nil
}

func (s *Store) SavePollMapping(_ context.Context, mapping domain.PollMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollMaps[mapping.PollID] = mapping
	return nil
}

func (s *Store) PollMapping(_ context.Context, pollID string) (domain.PollMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mapping, ok := s.pollMaps[pollID]
	if !ok {
		return domain.PollMapping{}, domain.ErrUnknownPoll
	}
	return mapping, nil
}

func (s *Store) RecordResponse(_ context.Context, record domain.ResponseRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := responseKey{record.UserID, record.QuizID, record.GroupID}
	if _, ok := s.responses[key]; ok {
		return false, nil
	}
	s.responses[key] = record

	agg, ok := s.aggregates[record.UserID]
	if !ok {
		agg = &domain.UserAggregate{UserID: record.UserID}
		s.aggregates[record.UserID] = agg
	}
	agg.TotalScore += record.Points
	switch record.Points {
	case domain.PointsCorrect:
		agg.Correct++
	case domain.PointsWrong:
		agg.Wrong++
	default:
		agg.Unattempted++
	}
	return true, nil
}

func (s *Store) ActiveGroups(_ context.Context) ([]domain.GroupSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]domain.GroupSubscription, 0, len(s.groups))
	for _, group := range s.groups {
		if group.Active {
			groups = append(groups, group)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (s *Store) GroupLanguage(_ context.Context, groupID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if group, ok := s.groups[groupID]; ok && group.Language != "" {
		return group.Language, nil
	}
	return domain.DefaultLanguage, nil
}

func (s *Store) SetGroupLanguage(_ context.Context, groupID int64, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupID]
	if !ok {
		return domain.ErrGroupNotFound
	}
	group.Language = language
	s.groups[groupID] = group
	return nil
}

func (s *Store) RepliesEnabled(_ context.Context, groupID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if group, ok := s.groups[groupID]; ok {
		return group.RepliesEnabled, nil
	}
	return true, nil
}

func (s *Store) SetRepliesEnabled(_ context.Context, groupID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupID]
	if !ok {
		return domain.ErrGroupNotFound
	}
	group.RepliesEnabled = enabled
	s.groups[groupID] = group
	return nil
}

func (s *Store) GroupLeaderboard(_ context.Context, groupID int64) ([]domain.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[int64]*domain.LeaderboardRow)
	for key, record := range s.responses {
		if key.groupID != groupID {
			continue
		}
		row, ok := byUser[key.userID]
		if !ok {
			row = &domain.LeaderboardRow{UserID: key.userID, Name: s.users[key.userID].Name()}
			byUser[key.userID] = row
		}
		row.Score += record.Points
		switch record.Points {
		case domain.PointsCorrect:
			row.Correct++
		case domain.PointsWrong:
			row.Wrong++
		default:
			row.Unattempted++
		}
	}

	rows := make([]domain.LeaderboardRow, 0, len(byUser))
	for _, row := range byUser {
		rows = append(rows, *row)
	}
	sortRows(rows)
	return rows, nil
}

func (s *Store) GlobalLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.LeaderboardRow, 0, len(s.aggregates))
	for _, agg := range s.aggregates {
		if agg.TotalScore <= 0 {
			continue
		}
		rows = append(rows, domain.LeaderboardRow{
			UserID:      agg.UserID,
			Name:        s.users[agg.UserID].Name(),
			Score:       agg.TotalScore,
			Correct:     agg.Correct,
			Wrong:       agg.Wrong,
			Unattempted: agg.Unattempted,
		})
	}
	sortRows(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) GlobalRank(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score := 0
	if agg, ok := s.aggregates[userID]; ok {
		score = agg.TotalScore
	}
	rank := 1
	for _, agg := range s.aggregates {
		if agg.TotalScore > score {
			rank++
		}
	}
	return rank, nil
}

func (s *Store) ResetAggregates(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, agg := range s.aggregates {
		*agg = domain.UserAggregate{UserID: agg.UserID}
	}
	s.responses = make(map[responseKey]domain.ResponseRecord)
	return nil
}

func (s *Store) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := 0
	for _, group := range s.groups {
		if group.Active {
			active++
		}
	}
	return domain.Stats{
		Users:   len(s.users),
		Groups:  active,
		Quizzes: len(s.quizzes),
		Answers: len(s.responses),
	}, nil
}

// Aggregate exposes a user's running totals; test helper for invariant checks.
func (s *Store) Aggregate(userID int64) domain.UserAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if agg, ok := s.aggregates[userID]; ok {
		return *agg
	}
	return domain.UserAggregate{UserID: userID}
}

// ResponseCount reports how many response records exist; test helper.
func (s *Store) ResponseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.responses)
}

func sortRows(rows []domain.LeaderboardRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Correct > rows[j].Correct
	})
}

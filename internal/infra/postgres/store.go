package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizrelay/internal/domain"
)

// Store is the Postgres implementation of app.Store. The unique index on
// (user_id, quiz_id, group_id) in user_quiz_scores is what makes scoring
// idempotent; everything else is plain upserts and aggregate queries.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			username = $2,
			first_name = $3,
			last_name = $4,
			updated_at = NOW()
	`, user.ID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) UpsertGroup(ctx context.Context, group domain.GroupSubscription) error {
	language := group.Language
	if language == "" {
		language = domain.DefaultLanguage
	}
	// Preferences (replies_enabled, language_preference) are only defaults on
	// insert; later activity must not clobber what the group configured.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, title, type, is_active, replies_enabled, language_preference, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = $2,
			type = $3,
			is_active = $4,
			updated_at = NOW()
	`, group.ID, group.Title, group.Type, group.Active, language)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

func (s *Store) AddGroupMember(ctx context.Context, userID, groupID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO group_members (user_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, group_id) DO NOTHING
	`, userID, groupID)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	options, err := json.Marshal(quiz.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO quizzes (message_id, hub_chat_id, quiz_text, correct_option, options, explanation, state, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		RETURNING id
	`, quiz.MessageID, quiz.HubChatID, quiz.Question, quiz.CorrectOption, options, quiz.Explanation, string(quiz.State), quiz.CreatedAt).Scan(&quiz.ID)
	if err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

func (s *Store) UpdateQuizCorrectOption(ctx context.Context, quizID int64, option int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes SET correct_option = $2, state = $3 WHERE id = $1
	`, quizID, option, string(domain.QuizResolved))
	if err != nil {
		return fmt.Errorf("update correct option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) UpdateQuizState(ctx context.Context, quizID int64, state domain.QuizState) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes SET state = $2 WHERE id = $1
	`, quizID, string(state))
	if err != nil {
		return fmt.Errorf("update quiz state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

const quizColumns = `id, message_id, hub_chat_id, quiz_text, correct_option, options, explanation, state, created_at`

func (s *Store) QuizByID(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.scanQuiz(s.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, quizID))
}

func (s *Store) QuizByMessage(ctx context.Context, chatID int64, messageID int) (domain.Quiz, error) {
	return s.scanQuiz(s.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE hub_chat_id = $1 AND message_id = $2`, chatID, messageID))
}

func (s *Store) scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var quiz domain.Quiz
	var options []byte
	var state string
	err := row.Scan(&quiz.ID, &quiz.MessageID, &quiz.HubChatID, &quiz.Question,
		&quiz.CorrectOption, &options, &quiz.Explanation, &state, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("scan quiz: %w", err)
	}
	if err := json.Unmarshal(options, &quiz.Options); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal options: %w", err)
	}
	quiz.State = domain.QuizState(state)
	return quiz, nil
}

func (s *Store) SavePollMapping(ctx context.Context, mapping domain.PollMapping) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO poll_mappings (poll_id, quiz_id, group_id, message_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id) DO NOTHING
	`, mapping.PollID, mapping.QuizID, mapping.GroupID, mapping.MessageID)
	if err != nil {
		return fmt.Errorf("save poll mapping: %w", err)
	}
	return nil
}

func (s *Store) PollMapping(ctx context.Context, pollID string) (domain.PollMapping, error) {
	var mapping domain.PollMapping
	err := s.pool.QueryRow(ctx, `
		SELECT poll_id, quiz_id, group_id, message_id FROM poll_mappings WHERE poll_id = $1
	`, pollID).Scan(&mapping.PollID, &mapping.QuizID, &mapping.GroupID, &mapping.MessageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PollMapping{}, domain.ErrUnknownPoll
	}
	if err != nil {
		return domain.PollMapping{}, fmt.Errorf("load poll mapping: %w", err)
	}
	return mapping, nil
}

func (s *Store) RecordResponse(ctx context.Context, record domain.ResponseRecord) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_quiz_scores (user_id, group_id, quiz_id, selected_option, points, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, quiz_id, group_id) DO NOTHING
	`, record.UserID, record.GroupID, record.QuizID, record.SelectedOption, record.Points, record.AnsweredAt)
	if err != nil {
		return false, fmt.Errorf("insert response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Duplicate: the aggregate was already credited, leave it alone.
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			total_score = total_score + $2,
			correct_answers = correct_answers + CASE WHEN $2 = 4 THEN 1 ELSE 0 END,
			wrong_answers = wrong_answers + CASE WHEN $2 = -1 THEN 1 ELSE 0 END,
			unattempted = unattempted + CASE WHEN $2 = 0 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
	`, record.UserID, record.Points)
	if err != nil {
		return false, fmt.Errorf("update aggregate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *Store) ActiveGroups(ctx context.Context) ([]domain.GroupSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, type, is_active, replies_enabled, language_preference
		FROM groups WHERE is_active = TRUE ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.GroupSubscription
	for rows.Next() {
		var group domain.GroupSubscription
		if err := rows.Scan(&group.ID, &group.Title, &group.Type, &group.Active, &group.RepliesEnabled, &group.Language); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (s *Store) GroupLanguage(ctx context.Context, groupID int64) (string, error) {
	var language string
	err := s.pool.QueryRow(ctx,
		`SELECT language_preference FROM groups WHERE id = $1`, groupID).Scan(&language)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultLanguage, nil
	}
	if err != nil {
		return "", fmt.Errorf("group language: %w", err)
	}
	return language, nil
}

func (s *Store) SetGroupLanguage(ctx context.Context, groupID int64, language string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE groups SET language_preference = $2, updated_at = NOW() WHERE id = $1
	`, groupID, language)
	if err != nil {
		return fmt.Errorf("set group language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (s *Store) RepliesEnabled(ctx context.Context, groupID int64) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx,
		`SELECT replies_enabled FROM groups WHERE id = $1`, groupID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("replies flag: %w", err)
	}
	return enabled, nil
}

func (s *Store) SetRepliesEnabled(ctx context.Context, groupID int64, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE groups SET replies_enabled = $2, updated_at = NOW() WHERE id = $1
	`, groupID, enabled)
	if err != nil {
		return fmt.Errorf("set replies flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (s *Store) GroupLeaderboard(ctx context.Context, groupID int64) ([]domain.LeaderboardRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, COALESCE(NULLIF(u.first_name, ''), NULLIF(u.username, ''), 'Unknown') AS name,
		       COALESCE(SUM(uqs.points), 0) AS score,
		       COUNT(*) FILTER (WHERE uqs.points = 4) AS correct,
		       COUNT(*) FILTER (WHERE uqs.points = -1) AS wrong,
		       COUNT(*) FILTER (WHERE uqs.points = 0) AS unattempted
		FROM users u
		JOIN group_members gm ON u.id = gm.user_id AND gm.group_id = $1
		JOIN user_quiz_scores uqs ON u.id = uqs.user_id AND uqs.group_id = $1
		GROUP BY u.id, name
		ORDER BY score DESC, correct DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group leaderboard: %w", err)
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func (s *Store) GlobalLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, COALESCE(NULLIF(u.first_name, ''), NULLIF(u.username, ''), 'Unknown') AS name,
		       u.total_score, u.correct_answers, u.wrong_answers, u.unattempted
		FROM users u
		WHERE u.total_score > 0
		ORDER BY u.total_score DESC, u.correct_answers DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("global leaderboard: %w", err)
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func scanLeaderboard(rows pgx.Rows) ([]domain.LeaderboardRow, error) {
	var out []domain.LeaderboardRow
	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.Name, &row.Score, &row.Correct, &row.Wrong, &row.Unattempted); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) GlobalRank(ctx context.Context, userID int64) (int, error) {
	var rank int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) + 1
		FROM users
		WHERE total_score > COALESCE((SELECT total_score FROM users WHERE id = $1), 0)
	`, userID).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("global rank: %w", err)
	}
	return rank, nil
}

func (s *Store) ResetAggregates(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE users SET
			total_score = 0,
			correct_answers = 0,
			wrong_answers = 0,
			unattempted = 0,
			updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("reset users: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_quiz_scores`); err != nil {
		return fmt.Errorf("delete responses: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM groups WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM quizzes),
			(SELECT COUNT(*) FROM user_quiz_scores)
	`).Scan(&stats.Users, &stats.Groups, &stats.Quizzes, &stats.Answers)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

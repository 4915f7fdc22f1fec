package postgres

import (
	"context"
	"fmt"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// AppendAttempt is a single INSERT, so concurrent submissions never race on
// a shared history value.
func (s *Store) AppendAttempt(ctx context.Context, attempt domain.Attempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, user_id, correct, attempted_at) VALUES ($1, $2, $3, $4, $5)`,
		attempt.ID, attempt.QuizID, attempt.UserID, attempt.Correct, attempt.AttemptedAt)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListAttempts returns matching attempts in append order.
func (s *Store) ListAttempts(ctx context.Context, filter app.AttemptFilter) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, user_id, correct, attempted_at
		 FROM quiz_attempts
		 WHERE ($1 = '' OR quiz_id = $1) AND ($2 = '' OR user_id = $2)
		 ORDER BY seq`,
		filter.QuizID, filter.UserID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Correct, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.AttemptedAt = a.AttemptedAt.UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *Store) ClearAttempts(ctx context.Context, quizID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_attempts WHERE quiz_id=$1`, quizID); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	return nil
}

func (s *Store) DeleteAttemptsByUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_attempts WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete attempts by user: %w", err)
	}
	return nil
}

package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"quizhub-service/internal/domain"
)

// Ledger records scored attempts and answers per-quiz history reads.
type Ledger struct {
	repo     QuizRepository
	attempts AttemptStore
	notifier ChangeNotifier
	now      func() time.Time
	newID    func() string
}

func NewLedger(repo QuizRepository, attempts AttemptStore, notifier ChangeNotifier) *Ledger {
	return NewLedgerWithClock(repo, attempts, notifier, time.Now, uuid.NewString)
}

// NewLedgerWithClock is test-only for deterministic timestamps and ids.
func NewLedgerWithClock(repo QuizRepository, attempts AttemptStore, notifier ChangeNotifier, now func() time.Time, newID func() string) *Ledger {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Ledger{repo: repo, attempts: attempts, notifier: notifier, now: now, newID: newID}
}

// RecordAttempt scores submission and appends the attempt. The result is
// only returned once the append is durable; a failed append surfaces as a
// retryable persistence error.
func (l *Ledger) RecordAttempt(ctx context.Context, quizID, userID string, submission []domain.Selection) (domain.AttemptResult, error) {
	quiz, err := l.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptResult{}, domain.Persistence("load quiz", err)
	}

	score := Score(quiz, submission)
	attempt := domain.Attempt{
		ID:          l.newID(),
		QuizID:      quiz.ID,
		UserID:      userID,
		AttemptedAt: l.now().UTC(),
		Correct:     score.CorrectCount,
	}
	if err := l.attempts.AppendAttempt(ctx, attempt); err != nil {
		return domain.AttemptResult{}, &domain.PersistenceError{Op: "append attempt", Err: err}
	}

	l.notifier.AggregatesChanged(ctx)
	return domain.AttemptResult{
		AttemptID:    attempt.ID,
		CorrectCount: score.CorrectCount,
		Percentage:   score.Percentage,
	}, nil
}

// History returns every attempt on quizID in append order.
func (l *Ledger) History(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	attempts, err := l.attempts.ListAttempts(ctx, AttemptFilter{QuizID: quizID})
	if err != nil {
		return nil, domain.Persistence("list attempts", err)
	}
	return attempts, nil
}

// BestAttempt loads userID's best attempt on quizID, or nil when there is none.
func (l *Ledger) BestAttempt(ctx context.Context, quizID, userID string) (*domain.Attempt, error) {
	if _, err := l.repo.GetQuiz(ctx, quizID); err != nil {
		return nil, domain.Persistence("load quiz", err)
	}
	attempts, err := l.attempts.ListAttempts(ctx, AttemptFilter{QuizID: quizID, UserID: userID})
	if err != nil {
		return nil, domain.Persistence("list attempts", err)
	}
	return BestAttempt(attempts, userID), nil
}

// RemoveAttemptsByUser drops every attempt userID made on any quiz.
func (l *Ledger) RemoveAttemptsByUser(ctx context.Context, userID string) error {
	if err := l.attempts.DeleteAttemptsByUser(ctx, userID); err != nil {
		return domain.Persistence("remove attempts", err)
	}
	l.notifier.AggregatesChanged(ctx)
	return nil
}

// BestAttempt picks the highest correct count among userID's attempts, with
// ties going to the most recent one.
func BestAttempt(attempts []domain.Attempt, userID string) *domain.Attempt {
	var best *domain.Attempt
	for i := range attempts {
		a := attempts[i]
		if a.UserID != userID {
			continue
		}
		if best == nil || a.Correct > best.Correct ||
			(a.Correct == best.Correct && a.AttemptedAt.After(best.AttemptedAt)) {
			picked := a
			best = &picked
		}
	}
	return best
}

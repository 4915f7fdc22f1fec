package app

import (
	"context"

	"quizhub-service/internal/domain"
)

// QuizFilter narrows ListQuizzes. Empty fields match everything.
type QuizFilter struct {
	OwnerID string
}

// QuizStore persists quiz definitions (in-memory, Postgres, etc).
type QuizStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, filter QuizFilter) ([]domain.Quiz, error)
	// DeleteQuiz removes the quiz together with its attempt history.
	DeleteQuiz(ctx context.Context, quizID string) error
	// ReassignQuizzes moves every quiz owned by from to the owner to.
	ReassignQuizzes(ctx context.Context, from, to string) error
}

// AttemptFilter narrows ListAttempts. Empty fields match everything.
type AttemptFilter struct {
	QuizID string
	UserID string
}

// AttemptStore is the append-only attempt ledger.
type AttemptStore interface {
	// AppendAttempt must be a single atomic push; concurrent appends never
	// overwrite each other.
	AppendAttempt(ctx context.Context, attempt domain.Attempt) error
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]domain.Attempt, error)
	ClearAttempts(ctx context.Context, quizID string) error
	DeleteAttemptsByUser(ctx context.Context, userID string) error
}

// UserStore resolves subjects to internal users and back.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserBySubject(ctx context.Context, subject string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// QuizRepository loads quiz content through a cache.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string) error
}

// LeaderboardCache holds the last computed leaderboard until invalidated.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]domain.LeaderboardEntry, bool, error)
	Set(ctx context.Context, entries []domain.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// ChangeNotifier is told whenever attempt history or quiz shape changes.
type ChangeNotifier interface {
	AggregatesChanged(ctx context.Context)
}

type noopNotifier struct{}

func (noopNotifier) AggregatesChanged(context.Context) {}

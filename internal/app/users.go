package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"quizhub-service/internal/domain"
)

// Users maps verified identities to internal accounts and handles account removal.
type Users struct {
	users    UserStore
	quizzes  QuizStore
	ledger   *Ledger
	repo     QuizRepository
	notifier ChangeNotifier
	now      func() time.Time
	newID    func() string
}

func NewUsers(users UserStore, quizzes QuizStore, ledger *Ledger, repo QuizRepository, notifier ChangeNotifier) *Users {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Users{
		users:    users,
		quizzes:  quizzes,
		ledger:   ledger,
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Register creates the account for identity.
func (u *Users) Register(ctx context.Context, identity domain.Identity, username, avatar string) (domain.User, error) {
	if identity.Subject == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, domain.Invalid("username", "must not be empty")
	}
	if _, err := u.users.GetUserBySubject(ctx, identity.Subject); err == nil {
		return domain.User{}, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.Persistence("lookup user", err)
	}

	user := domain.User{
		ID:        u.newID(),
		Subject:   identity.Subject,
		Email:     identity.Email,
		Username:  username,
		Avatar:    strings.TrimSpace(avatar),
		CreatedAt: u.now().UTC(),
	}
	if err := u.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, domain.Persistence("create user", err)
	}
	return user, nil
}

// Resolve finds the account registered for subject.
func (u *Users) Resolve(ctx context.Context, subject string) (domain.User, error) {
	user, err := u.users.GetUserBySubject(ctx, subject)
	if err != nil {
		return domain.User{}, domain.Persistence("lookup user", err)
	}
	return user, nil
}

// DeleteUser removes userID's attempts, then deletes or anonymizes their
// quizzes per mode, then the account itself.
func (u *Users) DeleteUser(ctx context.Context, userID string, mode domain.DeletionMode) error {
	if !mode.Valid() {
		return domain.Invalid("mode", "must be %q or %q", domain.DeleteQuizzes, domain.AnonymizeQuizzes)
	}
	if _, err := u.users.GetUser(ctx, userID); err != nil {
		return domain.Persistence("load user", err)
	}
	if err := u.ledger.RemoveAttemptsByUser(ctx, userID); err != nil {
		return err
	}

	owned, err := u.quizzes.ListQuizzes(ctx, QuizFilter{OwnerID: userID})
	if err != nil {
		return domain.Persistence("list quizzes", err)
	}
	switch mode {
	case domain.DeleteQuizzes:
		for _, q := range owned {
			if err := u.quizzes.DeleteQuiz(ctx, q.ID); err != nil {
				return domain.Persistence("delete quiz", err)
			}
		}
	case domain.AnonymizeQuizzes:
		if err := u.quizzes.ReassignQuizzes(ctx, userID, ""); err != nil {
			return domain.Persistence("anonymize quizzes", err)
		}
	}
	for _, q := range owned {
		if err := u.repo.Invalidate(ctx, q.ID); err != nil {
			log.Printf("invalidate cached quiz %s: %v", q.ID, err)
		}
	}

	if err := u.users.DeleteUser(ctx, userID); err != nil {
		return domain.Persistence("delete user", err)
	}
	u.notifier.AggregatesChanged(ctx)
	return nil
}

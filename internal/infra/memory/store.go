package memory

import (
	"context"
	"sort"
	"sync"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// Store is an in-memory implementation of the quiz, attempt and user ports.
type Store struct {
	mu       sync.RWMutex
	quizzes  map[string]domain.Quiz
	attempts map[string][]domain.Attempt
	users    map[string]domain.User
	subjects map[string]string
}

func NewStore() *Store {
	return &Store{
		quizzes:  make(map[string]domain.Quiz),
		attempts: make(map[string][]domain.Attempt),
		users:    make(map[string]domain.User),
		subjects: make(map[string]string),
	}
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return domain.ErrConflict
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (s *Store) UpdateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.ErrNotFound
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

// LoadQuiz also satisfies QuizLoader so the store can back a QuizRepository.
func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrNotFound
	}
	return cloneQuiz(quiz), nil
}

// ListQuizzes returns matching quizzes, newest first.
func (s *Store) ListQuizzes(_ context.Context, filter app.QuizFilter) ([]domain.Quiz, error) {
	s.mu.RLock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		if filter.OwnerID != "" && quiz.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, cloneQuiz(quiz))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.quizzes, quizID)
	delete(s.attempts, quizID)
	return nil
}

func (s *Store) ReassignQuizzes(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, quiz := range s.quizzes {
		if quiz.OwnerID == from {
			quiz.OwnerID = to
			s.quizzes[id] = quiz
		}
	}
	return nil
}

// AppendAttempt pushes onto the quiz's history under the write lock, so
// concurrent appends never overwrite each other.
func (s *Store) AppendAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[attempt.QuizID]; !ok {
		return domain.ErrNotFound
	}
	s.attempts[attempt.QuizID] = append(s.attempts[attempt.QuizID], attempt)
	return nil
}

// ListAttempts returns matching attempts in append order per quiz.
func (s *Store) ListAttempts(_ context.Context, filter app.AttemptFilter) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quizIDs := make([]string, 0, len(s.attempts))
	if filter.QuizID != "" {
		quizIDs = append(quizIDs, filter.QuizID)
	} else {
		for id := range s.attempts {
			quizIDs = append(quizIDs, id)
		}
		sort.Strings(quizIDs)
	}

	var out []domain.Attempt
	for _, id := range quizIDs {
		for _, a := range s.attempts[id] {
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ClearAttempts(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, quizID)
	return nil
}

func (s *Store) DeleteAttemptsByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for quizID, history := range s.attempts {
		kept := history[:0:0]
		for _, a := range history {
			if a.UserID != userID {
				kept = append(kept, a)
			}
		}
		s.attempts[quizID] = kept
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return domain.ErrConflict
	}
	if _, ok := s.subjects[user.Subject]; ok {
		return domain.ErrConflict
	}
	s.users[user.ID] = user
	s.subjects[user.Subject] = user.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserBySubject(_ context.Context, subject string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.subjects[subject]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.users, userID)
	delete(s.subjects, user.Subject)
	return nil
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	out := q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Answers = append([]domain.Answer(nil), question.Answers...)
		out.Questions[i] = question
	}
	return out
}

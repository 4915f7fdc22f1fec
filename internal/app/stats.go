package app

import (
	"context"
	"log"
	"sync"

	"quizhub-service/internal/domain"
)

// Stats answers aggregate reads. Results are recomputed from the ledger and
// optionally cached until the next change notification.
type Stats struct {
	quizzes  QuizStore
	attempts AttemptStore
	users    UserStore
	cache    LeaderboardCache
	feed     *Feed

	// mu orders cache writes against invalidations; gen counts invalidations.
	mu  sync.Mutex
	gen uint64
}

// NewStats builds the aggregation service. cache may be nil.
func NewStats(quizzes QuizStore, attempts AttemptStore, users UserStore, cache LeaderboardCache, feed *Feed) *Stats {
	if feed == nil {
		feed = NewFeed()
	}
	return &Stats{quizzes: quizzes, attempts: attempts, users: users, cache: cache, feed: feed}
}

// Leaderboard returns the ranked global leaderboard.
func (s *Stats) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx)
		if err != nil {
			log.Printf("leaderboard cache read: %v", err)
		} else if ok {
			return entries, nil
		}
	}

	gen := s.generation()
	quizzes, attempts, users, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entries := Leaderboard(quizzes, attempts, users)

	if s.cache != nil {
		s.mu.Lock()
		// A change landed while computing; keep the cache empty.
		if s.gen == gen {
			if err := s.cache.Set(ctx, entries); err != nil {
				log.Printf("leaderboard cache write: %v", err)
			}
		}
		s.mu.Unlock()
	}
	return entries, nil
}

// ProfileStats returns userID's slice of the aggregates.
func (s *Stats) ProfileStats(ctx context.Context, userID string) (domain.ProfileStats, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return domain.ProfileStats{}, domain.Persistence("load user", err)
	}
	quizzes, attempts, users, err := s.snapshot(ctx)
	if err != nil {
		return domain.ProfileStats{}, err
	}
	return ProfileStats(userID, quizzes, attempts, users), nil
}

// Subscribe returns a channel that first receives the current leaderboard and
// then every recomputed one.
func (s *Stats) Subscribe(ctx context.Context) (<-chan []domain.LeaderboardEntry, func(), error) {
	// Register before computing so a change during the computation is published.
	ch, cancel := s.feed.subscribe()
	current, err := s.Leaderboard(ctx)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	s.feed.prime(ch, current)
	return ch, cancel, nil
}

// AggregatesChanged drops the cached leaderboard and pushes a fresh one to
// live subscribers.
func (s *Stats) AggregatesChanged(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Printf("leaderboard cache invalidate: %v", err)
		}
	}
	s.mu.Unlock()
	if !s.feed.HasSubscribers() {
		return
	}
	entries, err := s.Leaderboard(ctx)
	if err != nil {
		log.Printf("recompute leaderboard: %v", err)
		return
	}
	s.feed.Publish(entries)
}

func (s *Stats) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Stats) snapshot(ctx context.Context) ([]domain.Quiz, []domain.Attempt, []domain.User, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx, QuizFilter{})
	if err != nil {
		return nil, nil, nil, domain.Persistence("list quizzes", err)
	}
	attempts, err := s.attempts.ListAttempts(ctx, AttemptFilter{})
	if err != nil {
		return nil, nil, nil, domain.Persistence("list attempts", err)
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, nil, nil, domain.Persistence("list users", err)
	}
	return quizzes, attempts, users, nil
}

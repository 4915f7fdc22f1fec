package app

import (
	"sync"

	"quizhub-service/internal/domain"
)

// Feed fans leaderboard snapshots out to live subscribers.
type Feed struct {
	mu          sync.Mutex
	// subscribers maps each channel to whether it has been sent anything yet.
	subscribers map[chan []domain.LeaderboardEntry]bool
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan []domain.LeaderboardEntry]bool)}
}

// HasSubscribers reports whether publishing would reach anyone.
func (f *Feed) HasSubscribers() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) > 0
}

// Publish delivers entries to every subscriber without blocking. A slow
// subscriber loses its stale snapshot in favour of the new one.
func (f *Feed) Publish(entries []domain.LeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- entries:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
		f.subscribers[ch] = true
	}
}

// subscribe registers an empty channel. The caller must invoke the
// returned cancel function to avoid leaks.
func (f *Feed) subscribe() (chan []domain.LeaderboardEntry, func()) {
	ch := make(chan []domain.LeaderboardEntry, 8)

	f.mu.Lock()
	f.subscribers[ch] = false
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// prime sends the initial snapshot unless a publish already reached ch; a
// published board is at least as recent as the snapshot.
func (f *Feed) prime(ch chan []domain.LeaderboardEntry, initial []domain.LeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent, ok := f.subscribers[ch]
	if !ok || sent {
		return
	}
	ch <- initial
	f.subscribers[ch] = true
}

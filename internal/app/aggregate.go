package app

import (
	"sort"

	"quizhub-service/internal/domain"
)

// passPercent is the per-attempt score that counts as a pass in profile stats.
const passPercent = 60.0

type userTally struct {
	entry   domain.LeaderboardEntry
	quizzes map[string]struct{}
}

// Leaderboard aggregates attempts per user. Attempts whose quiz is not in
// quizzes are skipped. Question totals use each quiz's current size.
func Leaderboard(quizzes []domain.Quiz, attempts []domain.Attempt, users []domain.User) []domain.LeaderboardEntry {
	byID := indexQuizzes(quizzes)
	created := make(map[string]int)
	for _, q := range quizzes {
		if q.OwnerID != "" {
			created[q.OwnerID]++
		}
	}

	tallies := make(map[string]*userTally)
	for _, a := range attempts {
		quiz, ok := byID[a.QuizID]
		if !ok {
			continue
		}
		t, ok := tallies[a.UserID]
		if !ok {
			t = &userTally{
				entry:   domain.LeaderboardEntry{UserID: a.UserID},
				quizzes: make(map[string]struct{}),
			}
			tallies[a.UserID] = t
		}
		questionCount := len(quiz.Questions)
		t.entry.TotalCorrect += a.Correct
		t.entry.TotalQuestions += questionCount
		t.entry.AttemptsCount++
		t.quizzes[a.QuizID] = struct{}{}
		if p := attemptPercent(a.Correct, questionCount); p > t.entry.BestPercent {
			t.entry.BestPercent = p
		}
	}

	names := indexUsers(users)
	entries := make([]domain.LeaderboardEntry, 0, len(tallies))
	for userID, t := range tallies {
		e := t.entry
		e.QuizzesTaken = len(t.quizzes)
		e.QuizzesCreated = created[userID]
		e.AvgPercent = attemptPercent(e.TotalCorrect, e.TotalQuestions)
		e.Username = userID
		if u, ok := names[userID]; ok {
			e.Username = u.Username
			e.Avatar = u.Avatar
		}
		entries = append(entries, e)
	}
	rank(entries)
	return entries
}

// rank orders by average descending then username, and numbers from 1.
func rank(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AvgPercent != entries[j].AvgPercent {
			return entries[i].AvgPercent > entries[j].AvgPercent
		}
		if entries[i].Username != entries[j].Username {
			return entries[i].Username < entries[j].Username
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// ProfileStats is the leaderboard restricted to userID, plus the quizzes
// they took and the ones they created.
func ProfileStats(userID string, quizzes []domain.Quiz, attempts []domain.Attempt, users []domain.User) domain.ProfileStats {
	stats := domain.ProfileStats{
		Summary:        domain.LeaderboardEntry{UserID: userID, Username: userID},
		TakenQuizzes:   []domain.TakenQuiz{},
		CreatedQuizzes: []domain.CreatedQuiz{},
	}
	if u, ok := indexUsers(users)[userID]; ok {
		stats.Summary.Username = u.Username
		stats.Summary.Avatar = u.Avatar
	}
	for _, e := range Leaderboard(quizzes, attempts, users) {
		if e.UserID == userID {
			stats.Summary = e
			break
		}
	}

	stats.Summary.QuizzesCreated = countOwned(quizzes, userID)

	perQuiz := make(map[string][]domain.Attempt)
	for _, a := range attempts {
		perQuiz[a.QuizID] = append(perQuiz[a.QuizID], a)
	}

	for _, quiz := range quizzes {
		history := perQuiz[quiz.ID]
		if best := BestAttempt(history, userID); best != nil {
			count := 0
			for _, a := range history {
				if a.UserID == userID {
					count++
				}
			}
			stats.TakenQuizzes = append(stats.TakenQuizzes, domain.TakenQuiz{
				Quiz:          summarize(quiz),
				BestAttempt:   *best,
				AttemptsCount: count,
			})
		}

		if quiz.OwnerID != userID {
			continue
		}
		created := domain.CreatedQuiz{Quiz: summarize(quiz), AttemptsCount: len(history)}
		if len(history) > 0 {
			passed := 0
			total := 0.0
			for _, a := range history {
				p := attemptPercent(a.Correct, len(quiz.Questions))
				total += p
				if p >= passPercent {
					passed++
				}
			}
			created.PassRate = 100 * float64(passed) / float64(len(history))
			created.AverageScore = total / float64(len(history))
		}
		stats.CreatedQuizzes = append(stats.CreatedQuizzes, created)
	}

	sort.SliceStable(stats.TakenQuizzes, func(i, j int) bool {
		return stats.TakenQuizzes[i].BestAttempt.AttemptedAt.After(stats.TakenQuizzes[j].BestAttempt.AttemptedAt)
	})
	sort.SliceStable(stats.CreatedQuizzes, func(i, j int) bool {
		return stats.CreatedQuizzes[i].Quiz.CreatedAt.After(stats.CreatedQuizzes[j].Quiz.CreatedAt)
	})
	return stats
}

func attemptPercent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}

func summarize(q domain.Quiz) domain.QuizSummary {
	return domain.QuizSummary{
		ID:            q.ID,
		Title:         q.Title,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		QuestionCount: len(q.Questions),
		ReqToPass:     q.ReqToPass,
		CreatedAt:     q.CreatedAt,
	}
}

func countOwned(quizzes []domain.Quiz, userID string) int {
	n := 0
	for _, q := range quizzes {
		if q.OwnerID == userID {
			n++
		}
	}
	return n
}

func indexQuizzes(quizzes []domain.Quiz) map[string]domain.Quiz {
	out := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		out[q.ID] = q
	}
	return out
}

func indexUsers(users []domain.User) map[string]domain.User {
	out := make(map[string]domain.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

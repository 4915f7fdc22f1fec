package domain

import "time"

// Category groups quizzes by subject.
type Category string

const (
	CategoryArt     Category = "art"
	CategoryHistory Category = "history"
	CategoryMusic   Category = "music"
	CategoryScience Category = "science"
	CategoryOther   Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryArt, CategoryHistory, CategoryMusic, CategoryScience, CategoryOther:
		return true
	}
	return false
}

// Difficulty is advisory metadata shown next to a quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Answer is one selectable option of a question.
type Answer struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	IsCorrect bool   `json:"is_correct"`
}

// Question holds a prompt and its ordered answers.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Answers []Answer `json:"answers"`
}

// Quiz is a titled collection of questions with a correctness policy.
type Quiz struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Category             Category   `json:"category"`
	Difficulty           Difficulty `json:"difficulty"`
	OwnerID              string     `json:"owner_id"`
	ReqToPass            int        `json:"req_to_pass"`
	AllowMultipleCorrect bool       `json:"allow_multiple_correct"`
	RequireAllCorrect    bool       `json:"require_all_correct"`
	AnswersLocked        bool       `json:"answers_locked"`
	CreatedAt            time.Time  `json:"created_at"`
	Questions            []Question `json:"questions"`
}

// Redacted returns a copy of the quiz with every is_correct flag cleared.
func (q Quiz) Redacted() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		answers := make([]Answer, len(question.Answers))
		for j, a := range question.Answers {
			answers[j] = Answer{ID: a.ID, Label: a.Label}
		}
		out.Questions[i] = Question{ID: question.ID, Prompt: question.Prompt, Answers: answers}
	}
	return out
}

// Attempt is one immutable scored submission by a user against a quiz.
type Attempt struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quiz_id"`
	UserID      string    `json:"user_id"`
	AttemptedAt time.Time `json:"attempted_at"`
	Correct     int       `json:"correct"`
}

// Score is the outcome of scoring a full submission.
type Score struct {
	CorrectCount int
	Percentage   int
	// PerQuestion is aligned with the quiz's questions.
	PerQuestion []bool
}

// AttemptResult is what a submitter gets back once the attempt is durable.
type AttemptResult struct {
	AttemptID    string `json:"attempt_id"`
	CorrectCount int    `json:"correct_count"`
	Percentage   int    `json:"percentage"`
}

// User is the display-side view of a registered account.
type User struct {
	ID        string    `json:"id"`
	Subject   string    `json:"-"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is what the identity provider vouches for.
type Identity struct {
	Subject string
	Email   string
}

// DeletionMode selects what happens to a deleted user's quizzes.
type DeletionMode string

const (
	DeleteQuizzes    DeletionMode = "delete_quizzes"
	AnonymizeQuizzes DeletionMode = "anonymize_quizzes"
)

func (m DeletionMode) Valid() bool {
	return m == DeleteQuizzes || m == AnonymizeQuizzes
}

// LeaderboardEntry aggregates one user's attempts across every quiz.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"userId"`
	Username       string  `json:"username"`
	Avatar         string  `json:"avatar,omitempty"`
	TotalCorrect   int     `json:"totalCorrect"`
	TotalQuestions int     `json:"totalQuestions"`
	AttemptsCount  int     `json:"attemptsCount"`
	QuizzesTaken   int     `json:"quizzesTaken"`
	QuizzesCreated int     `json:"quizzesCreated"`
	BestPercent    float64 `json:"bestPercent"`
	AvgPercent     float64 `json:"avgPercent"`
}

// QuizSummary is quiz metadata without questions.
type QuizSummary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Category      Category   `json:"category"`
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int        `json:"questionCount"`
	ReqToPass     int        `json:"reqToPass"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// TakenQuiz is a quiz the profile owner has attempted at least once.
type TakenQuiz struct {
	Quiz          QuizSummary `json:"quiz"`
	BestAttempt   Attempt     `json:"bestAttempt"`
	AttemptsCount int         `json:"attemptsCount"`
}

// CreatedQuiz is a quiz the profile owner authored, with its audience numbers.
type CreatedQuiz struct {
	Quiz          QuizSummary `json:"quiz"`
	AttemptsCount int         `json:"attemptsCount"`
	PassRate      float64     `json:"passRate"`
	AverageScore  float64     `json:"averageScore"`
}

// ProfileStats is a single user's slice of the aggregates.
type ProfileStats struct {
	Summary        LeaderboardEntry `json:"summary"`
	TakenQuizzes   []TakenQuiz      `json:"takenQuizzes"`
	CreatedQuizzes []CreatedQuiz    `json:"createdQuizzes"`
}

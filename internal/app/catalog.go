package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"quizhub-service/internal/domain"
)

// QuizDefinition is the author-supplied body of a new quiz.
type QuizDefinition struct {
	Title                string          `json:"title"`
	Category             string          `json:"category"`
	Difficulty           string          `json:"difficulty"`
	ReqToPass            *int            `json:"req_to_pass"`
	AllowMultipleCorrect bool            `json:"allow_multiple_correct"`
	RequireAllCorrect    bool            `json:"require_all_correct"`
	AnswersLocked        bool            `json:"answers_locked"`
	Questions            []QuestionInput `json:"questions"`
}

// QuestionInput carries an optional existing id. On update a known id is
// kept unless Regenerate is set.
type QuestionInput struct {
	ID         string        `json:"id,omitempty"`
	Prompt     string        `json:"prompt"`
	Regenerate bool          `json:"regenerate,omitempty"`
	Answers    []AnswerInput `json:"answers"`
}

type AnswerInput struct {
	ID        string `json:"id,omitempty"`
	Label     string `json:"label"`
	IsCorrect bool   `json:"is_correct"`
}

// QuizPatch touches only the non-nil fields. Questions replaces the whole
// question list when non-nil.
type QuizPatch struct {
	Title                *string         `json:"title,omitempty"`
	Category             *string         `json:"category,omitempty"`
	Difficulty           *string         `json:"difficulty,omitempty"`
	ReqToPass            *int            `json:"req_to_pass,omitempty"`
	AllowMultipleCorrect *bool           `json:"allow_multiple_correct,omitempty"`
	RequireAllCorrect    *bool           `json:"require_all_correct,omitempty"`
	AnswersLocked        *bool           `json:"answers_locked,omitempty"`
	Questions            []QuestionInput `json:"questions,omitempty"`
	// ResetAttempts is the caller's confirmation that history may be cleared.
	ResetAttempts bool `json:"reset_attempts,omitempty"`
}

// UpdateResult reports what an update did besides storing the quiz.
type UpdateResult struct {
	Quiz             domain.Quiz `json:"quiz"`
	AnswerKeyChanged bool        `json:"answer_key_changed"`
	AttemptsCleared  bool        `json:"attempts_cleared"`
}

// Catalog owns quiz definitions.
type Catalog struct {
	quizzes  QuizStore
	repo     QuizRepository
	attempts AttemptStore
	users    UserStore
	notifier ChangeNotifier
	now      func() time.Time
	newID    func() string
}

func NewCatalog(quizzes QuizStore, repo QuizRepository, attempts AttemptStore, users UserStore, notifier ChangeNotifier) *Catalog {
	return NewCatalogWithClock(quizzes, repo, attempts, users, notifier, time.Now, uuid.NewString)
}

// NewCatalogWithClock allows deterministic timestamps and ids in tests.
func NewCatalogWithClock(quizzes QuizStore, repo QuizRepository, attempts AttemptStore, users UserStore, notifier ChangeNotifier, now func() time.Time, newID func() string) *Catalog {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Catalog{
		quizzes:  quizzes,
		repo:     repo,
		attempts: attempts,
		users:    users,
		notifier: notifier,
		now:      now,
		newID:    newID,
	}
}

// CreateQuiz validates def and persists it under ownerID with fresh ids.
func (c *Catalog) CreateQuiz(ctx context.Context, ownerID string, def QuizDefinition) (domain.Quiz, error) {
	if _, err := c.users.GetUser(ctx, ownerID); err != nil {
		return domain.Quiz{}, domain.Persistence("resolve owner", err)
	}

	title := strings.TrimSpace(def.Title)
	if title == "" {
		return domain.Quiz{}, domain.Invalid("title", "must not be empty")
	}
	questions, err := c.buildQuestions(def.Questions, nil)
	if err != nil {
		return domain.Quiz{}, err
	}

	quiz := domain.Quiz{
		ID:                   c.newID(),
		Title:                title,
		Category:             normalizeCategory(def.Category),
		Difficulty:           normalizeDifficulty(def.Difficulty),
		OwnerID:              ownerID,
		AllowMultipleCorrect: def.AllowMultipleCorrect || def.RequireAllCorrect,
		RequireAllCorrect:    def.RequireAllCorrect,
		AnswersLocked:        def.AnswersLocked,
		CreatedAt:            c.now().UTC(),
		Questions:            questions,
	}
	quiz.ReqToPass = clampReqToPass(def.ReqToPass, len(questions))

	if err := c.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, domain.Persistence("create quiz", err)
	}
	return quiz, nil
}

// UpdateQuiz applies patch when editorID owns the quiz.
func (c *Catalog) UpdateQuiz(ctx context.Context, quizID, editorID string, patch QuizPatch) (UpdateResult, error) {
	current, err := c.quizzes.LoadQuiz(ctx, quizID)
	if err != nil {
		return UpdateResult{}, domain.Persistence("load quiz", err)
	}
	if current.OwnerID != editorID {
		return UpdateResult{}, domain.ErrForbidden
	}

	next := current
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return UpdateResult{}, domain.Invalid("title", "must not be empty")
		}
		next.Title = title
	}
	if patch.Category != nil {
		next.Category = normalizeCategory(*patch.Category)
	}
	if patch.Difficulty != nil {
		next.Difficulty = normalizeDifficulty(*patch.Difficulty)
	}
	if patch.AllowMultipleCorrect != nil {
		next.AllowMultipleCorrect = *patch.AllowMultipleCorrect
		if !next.AllowMultipleCorrect && patch.RequireAllCorrect == nil {
			next.RequireAllCorrect = false
		}
	}
	if patch.RequireAllCorrect != nil {
		next.RequireAllCorrect = *patch.RequireAllCorrect
	}
	if next.RequireAllCorrect {
		next.AllowMultipleCorrect = true
	}
	if patch.AnswersLocked != nil {
		next.AnswersLocked = *patch.AnswersLocked
	}
	if patch.Questions != nil {
		questions, err := c.buildQuestions(patch.Questions, current.Questions)
		if err != nil {
			return UpdateResult{}, err
		}
		next.Questions = questions
	}

	reqToPass := patch.ReqToPass
	if reqToPass == nil {
		reqToPass = &current.ReqToPass
	}
	next.ReqToPass = clampReqToPass(reqToPass, len(next.Questions))

	if err := c.quizzes.UpdateQuiz(ctx, next); err != nil {
		return UpdateResult{}, domain.Persistence("update quiz", err)
	}
	result := UpdateResult{
		Quiz:             next,
		AnswerKeyChanged: AnswerKeyChanged(current.Questions, next.Questions),
	}
	if patch.ResetAttempts {
		if err := c.attempts.ClearAttempts(ctx, quizID); err != nil {
			return UpdateResult{}, domain.Persistence("clear attempts", err)
		}
		result.AttemptsCleared = true
	}

	c.invalidate(ctx, quizID)
	return result, nil
}

// GetQuiz loads a quiz through the cache.
func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := c.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, domain.Persistence("load quiz", err)
	}
	return quiz, nil
}

func (c *Catalog) ListQuizzes(ctx context.Context, filter QuizFilter) ([]domain.Quiz, error) {
	quizzes, err := c.quizzes.ListQuizzes(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("list quizzes", err)
	}
	return quizzes, nil
}

// DeleteQuiz removes a quiz and its history when actorID owns it.
func (c *Catalog) DeleteQuiz(ctx context.Context, quizID, actorID string) error {
	quiz, err := c.quizzes.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Persistence("load quiz", err)
	}
	if quiz.OwnerID != actorID {
		return domain.ErrForbidden
	}
	if err := c.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return domain.Persistence("delete quiz", err)
	}
	c.invalidate(ctx, quizID)
	return nil
}

func (c *Catalog) invalidate(ctx context.Context, quizID string) {
	if err := c.repo.Invalidate(ctx, quizID); err != nil {
		log.Printf("invalidate cached quiz %s: %v", quizID, err)
	}
	c.notifier.AggregatesChanged(ctx)
}

// buildQuestions validates inputs and assigns ids. Ids found in previous are
// kept; everything else gets a fresh one.
func (c *Catalog) buildQuestions(inputs []QuestionInput, previous []domain.Question) ([]domain.Question, error) {
	known := make(map[string]domain.Question, len(previous))
	for _, q := range previous {
		known[q.ID] = q
	}

	questions := make([]domain.Question, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("questions[%d]", i)
		prompt := strings.TrimSpace(in.Prompt)
		if prompt == "" {
			return nil, domain.Invalid(field+".prompt", "must not be empty")
		}
		if len(in.Answers) == 0 {
			return nil, domain.Invalid(field+".answers", "at least one answer is required")
		}

		old, keep := known[in.ID]
		if _, dup := seen[in.ID]; dup || in.Regenerate {
			keep = false
		}
		question := domain.Question{ID: c.newID(), Prompt: prompt}
		if keep {
			question.ID = old.ID
		}
		seen[question.ID] = struct{}{}

		oldAnswers := make(map[string]struct{}, len(old.Answers))
		if keep {
			for _, a := range old.Answers {
				oldAnswers[a.ID] = struct{}{}
			}
		}
		usedAnswers := make(map[string]struct{}, len(in.Answers))
		// Labels double as answer keys for text-keyed submissions.
		labels := make(map[string]struct{}, len(in.Answers))
		hasCorrect := false
		for j, ain := range in.Answers {
			label := strings.TrimSpace(ain.Label)
			labelField := fmt.Sprintf("%s.answers[%d].label", field, j)
			if label == "" {
				return nil, domain.Invalid(labelField, "must not be empty")
			}
			if _, dup := labels[label]; dup {
				return nil, domain.Invalid(labelField, "duplicates another answer of this question")
			}
			labels[label] = struct{}{}
			answer := domain.Answer{ID: c.newID(), Label: label, IsCorrect: ain.IsCorrect}
			if _, ok := oldAnswers[ain.ID]; ok {
				if _, used := usedAnswers[ain.ID]; !used {
					answer.ID = ain.ID
				}
			}
			usedAnswers[answer.ID] = struct{}{}
			hasCorrect = hasCorrect || answer.IsCorrect
			question.Answers = append(question.Answers, answer)
		}
		if !hasCorrect {
			return nil, domain.Invalid(field+".answers", "at least one answer must be correct")
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func normalizeCategory(raw string) domain.Category {
	c := domain.Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return domain.CategoryOther
	}
	return c
}

func normalizeDifficulty(raw string) domain.Difficulty {
	d := domain.Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	if !d.Valid() {
		return domain.DifficultyMedium
	}
	return d
}

// clampReqToPass defaults to every question when unset or negative.
func clampReqToPass(raw *int, questionCount int) int {
	if raw == nil || *raw < 0 {
		return questionCount
	}
	if *raw > questionCount {
		return questionCount
	}
	return *raw
}

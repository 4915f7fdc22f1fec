package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
)

type fixture struct {
	store   *memory.Store
	repo    *memory.QuizRepository
	cache   *memory.LeaderboardCache
	stats   *app.Stats
	ledger  *app.Ledger
	catalog *app.Catalog
	users   *app.Users
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repo := memory.NewQuizRepository(store, time.Minute)
	cache := memory.NewLeaderboardCache(time.Minute)
	stats := app.NewStats(store, store, store, cache, app.NewFeed())
	ledger := app.NewLedger(repo, store, stats)
	return &fixture{
		store:   store,
		repo:    repo,
		cache:   cache,
		stats:   stats,
		ledger:  ledger,
		catalog: app.NewCatalog(store, repo, store, store, stats),
		users:   app.NewUsers(store, store, ledger, repo, stats),
	}
}

func (f *fixture) register(t *testing.T, name string) domain.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), domain.Identity{Subject: "sub-" + name}, name, "")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return user
}

func threeQuestions() []app.QuestionInput {
	var out []app.QuestionInput
	for i := 1; i <= 3; i++ {
		out = append(out, app.QuestionInput{
			Prompt: fmt.Sprintf("question %d", i),
			Answers: []app.AnswerInput{
				{Label: "right", IsCorrect: true},
				{Label: "wrong"},
			},
		})
	}
	return out
}

func (f *fixture) createQuiz(t *testing.T, owner domain.User) domain.Quiz {
	t.Helper()
	quiz, err := f.catalog.CreateQuiz(context.Background(), owner.ID, app.QuizDefinition{
		Title:     "Basics",
		Questions: threeQuestions(),
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

func TestCreateQuizNormalizes(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")

	quiz := f.createQuiz(t, owner)
	if quiz.ReqToPass != 3 {
		t.Fatalf("expected req_to_pass 3, got %d", quiz.ReqToPass)
	}
	if quiz.Category != domain.CategoryOther || quiz.Difficulty != domain.DifficultyMedium {
		t.Fatalf("unexpected defaults %s/%s", quiz.Category, quiz.Difficulty)
	}
	if quiz.OwnerID != owner.ID || quiz.ID == "" || quiz.Questions[0].ID == "" || quiz.Questions[0].Answers[0].ID == "" {
		t.Fatalf("ids not assigned: %+v", quiz)
	}

	tooMany := 10
	quiz, err := f.catalog.CreateQuiz(context.Background(), owner.ID, app.QuizDefinition{
		Title:             "Strict",
		Category:          "History",
		ReqToPass:         &tooMany,
		RequireAllCorrect: true,
		Questions:         threeQuestions(),
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if quiz.ReqToPass != 3 || !quiz.AllowMultipleCorrect || quiz.Category != domain.CategoryHistory {
		t.Fatalf("unexpected normalization %+v", quiz)
	}
}

func TestCreateQuizRejectsBadDefinitions(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")

	noCorrect := threeQuestions()
	noCorrect[1].Answers[0].IsCorrect = false
	emptyLabel := threeQuestions()
	emptyLabel[0].Answers[1].Label = " "
	noAnswers := threeQuestions()
	noAnswers[2].Answers = nil
	noPrompt := threeQuestions()
	noPrompt[0].Prompt = ""
	dupLabel := threeQuestions()
	dupLabel[2].Answers[1].Label = " right "

	cases := map[string]struct {
		def   app.QuizDefinition
		field string
	}{
		"title":      {app.QuizDefinition{Title: "", Questions: threeQuestions()}, "title"},
		"no correct": {app.QuizDefinition{Title: "x", Questions: noCorrect}, "questions[1].answers"},
		"label":      {app.QuizDefinition{Title: "x", Questions: emptyLabel}, "questions[0].answers[1].label"},
		"answers":    {app.QuizDefinition{Title: "x", Questions: noAnswers}, "questions[2].answers"},
		"prompt":     {app.QuizDefinition{Title: "x", Questions: noPrompt}, "questions[0].prompt"},
		"dup label":  {app.QuizDefinition{Title: "x", Questions: dupLabel}, "questions[2].answers[1].label"},
	}
	for name, tc := range cases {
		_, err := f.catalog.CreateQuiz(context.Background(), owner.ID, tc.def)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("%s: expected validation error on %s, got %v", name, tc.field, err)
		}
	}

	if _, err := f.catalog.CreateQuiz(context.Background(), "ghost", app.QuizDefinition{Title: "x", Questions: threeQuestions()}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown owner, got %v", err)
	}
}

func TestUpdateQuizKeepsAndRegeneratesIDs(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	quiz := f.createQuiz(t, owner)
	q0, q1 := quiz.Questions[0], quiz.Questions[1]

	patch := app.QuizPatch{Questions: []app.QuestionInput{
		{ID: q0.ID, Prompt: "reworded", Answers: []app.AnswerInput{
			{ID: q0.Answers[0].ID, Label: "right", IsCorrect: true},
			{ID: q0.Answers[1].ID, Label: "still wrong"},
		}},
		{ID: q1.ID, Regenerate: true, Prompt: q1.Prompt, Answers: []app.AnswerInput{
			{Label: "right", IsCorrect: true},
		}},
	}}
	result, err := f.catalog.UpdateQuiz(context.Background(), quiz.ID, owner.ID, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got := result.Quiz.Questions
	if len(got) != 2 || got[0].ID != q0.ID || got[0].Answers[0].ID != q0.Answers[0].ID {
		t.Fatalf("kept ids changed: %+v", got)
	}
	if got[1].ID == q1.ID {
		t.Fatalf("regenerate should assign a fresh id")
	}
	if !result.AnswerKeyChanged {
		t.Fatalf("dropping a question must change the answer key")
	}
	if result.Quiz.ReqToPass != 2 {
		t.Fatalf("req_to_pass should be re-clamped to 2, got %d", result.Quiz.ReqToPass)
	}

	cached, err := f.catalog.GetQuiz(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cached.Questions[0].Prompt != "reworded" {
		t.Fatalf("cache served a stale quiz")
	}
}

func TestUpdateQuizClearsHistoryOnlyWhenAsked(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	taker := f.register(t, "bob")
	quiz := f.createQuiz(t, owner)
	ctx := context.Background()

	if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, taker.ID, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	title := "Renamed"
	if _, err := f.catalog.UpdateQuiz(ctx, quiz.ID, owner.ID, app.QuizPatch{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	history, _ := f.ledger.History(ctx, quiz.ID)
	if len(history) != 1 {
		t.Fatalf("history cleared without confirmation")
	}

	result, err := f.catalog.UpdateQuiz(ctx, quiz.ID, owner.ID, app.QuizPatch{ResetAttempts: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	history, _ = f.ledger.History(ctx, quiz.ID)
	if !result.AttemptsCleared || len(history) != 0 {
		t.Fatalf("expected cleared history, got %d attempts", len(history))
	}
}

func TestUpdateQuizErrors(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	other := f.register(t, "bob")
	quiz := f.createQuiz(t, owner)

	if _, err := f.catalog.UpdateQuiz(context.Background(), quiz.ID, other.ID, app.QuizPatch{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.catalog.UpdateQuiz(context.Background(), "missing", owner.ID, app.QuizPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentRecordAttemptKeepsEveryAttempt(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	quiz := f.createQuiz(t, owner)

	const n = 25
	var g errgroup.Group
	for i := 0; i < n; i++ {
		userID := fmt.Sprintf("user-%d", i%5)
		g.Go(func() error {
			_, err := f.ledger.RecordAttempt(context.Background(), quiz.ID, userID, []domain.Selection{domain.Single("right")})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("record: %v", err)
	}
	history, err := f.ledger.History(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != n {
		t.Fatalf("expected %d attempts, got %d", n, len(history))
	}
}

func TestRecordAttemptUnknownQuiz(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.RecordAttempt(context.Background(), "missing", "u1", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type failingAppends struct {
	app.AttemptStore
}

func (failingAppends) AppendAttempt(context.Context, domain.Attempt) error {
	return errors.New("connection reset")
}

func TestRecordAttemptSurfacesAppendFailure(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	quiz := f.createQuiz(t, owner)

	ledger := app.NewLedger(f.repo, failingAppends{AttemptStore: f.store}, nil)
	_, err := ledger.RecordAttempt(context.Background(), quiz.ID, "u1", nil)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	history, _ := f.ledger.History(context.Background(), quiz.ID)
	if len(history) != 0 {
		t.Fatalf("failed append left %d attempts", len(history))
	}
}

func TestBestAttemptThroughLedger(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	quiz := f.createQuiz(t, owner)
	ctx := context.Background()

	best, err := f.ledger.BestAttempt(ctx, quiz.ID, "u1")
	if err != nil || best != nil {
		t.Fatalf("expected no best attempt, got %+v, %v", best, err)
	}
	all := []domain.Selection{domain.Single("right"), domain.Single("right"), domain.Single("right")}
	if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, "u1", all); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, "u1", all[:1]); err != nil {
		t.Fatalf("record: %v", err)
	}
	best, err = f.ledger.BestAttempt(ctx, quiz.ID, "u1")
	if err != nil || best == nil || best.Correct != 3 {
		t.Fatalf("expected best of 3, got %+v, %v", best, err)
	}
}

func TestDeleteQuizDropsAggregates(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	taker := f.register(t, "bob")
	quiz := f.createQuiz(t, owner)
	ctx := context.Background()

	if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, taker.ID, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if board, _ := f.stats.Leaderboard(ctx); len(board) != 1 {
		t.Fatalf("expected one entry before delete, got %d", len(board))
	}
	if err := f.catalog.DeleteQuiz(ctx, quiz.ID, taker.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.catalog.DeleteQuiz(ctx, quiz.ID, owner.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	board, err := f.stats.Leaderboard(ctx)
	if err != nil || len(board) != 0 {
		t.Fatalf("expected empty board after delete, got %+v, %v", board, err)
	}
	if _, err := f.catalog.GetQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegisterAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice")

	got, err := f.users.Resolve(ctx, "sub-alice")
	if err != nil || got.ID != user.ID {
		t.Fatalf("resolve: %+v, %v", got, err)
	}
	if _, err := f.users.Register(ctx, domain.Identity{Subject: "sub-alice"}, "again", ""); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var verr *domain.ValidationError
	if _, err := f.users.Register(ctx, domain.Identity{Subject: "sub-x"}, "  ", ""); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.users.Resolve(ctx, "sub-unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteUserModes(t *testing.T) {
	ctx := context.Background()

	t.Run("delete quizzes", func(t *testing.T) {
		f := newFixture(t)
		alice := f.register(t, "alice")
		bob := f.register(t, "bob")
		quiz := f.createQuiz(t, alice)
		if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, bob.ID, nil); err != nil {
			t.Fatalf("record: %v", err)
		}

		if err := f.users.DeleteUser(ctx, alice.ID, domain.DeleteQuizzes); err != nil {
			t.Fatalf("delete user: %v", err)
		}
		if _, err := f.catalog.GetQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("quiz should be gone, got %v", err)
		}
		if board, _ := f.stats.Leaderboard(ctx); len(board) != 0 {
			t.Fatalf("bob's attempts on the deleted quiz should not count: %+v", board)
		}
	})

	t.Run("anonymize quizzes", func(t *testing.T) {
		f := newFixture(t)
		alice := f.register(t, "alice")
		bob := f.register(t, "bob")
		quiz := f.createQuiz(t, alice)
		if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, bob.ID, nil); err != nil {
			t.Fatalf("record: %v", err)
		}
		if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, alice.ID, nil); err != nil {
			t.Fatalf("record: %v", err)
		}

		if err := f.users.DeleteUser(ctx, alice.ID, domain.AnonymizeQuizzes); err != nil {
			t.Fatalf("delete user: %v", err)
		}
		kept, err := f.catalog.GetQuiz(ctx, quiz.ID)
		if err != nil || kept.OwnerID != "" {
			t.Fatalf("expected anonymized quiz, got %+v, %v", kept, err)
		}
		history, _ := f.ledger.History(ctx, quiz.ID)
		if len(history) != 1 || history[0].UserID != bob.ID {
			t.Fatalf("only bob's attempt should remain, got %+v", history)
		}
	})

	t.Run("invalid mode", func(t *testing.T) {
		f := newFixture(t)
		alice := f.register(t, "alice")
		var verr *domain.ValidationError
		if err := f.users.DeleteUser(ctx, alice.ID, "purge"); !errors.As(err, &verr) || verr.Field != "mode" {
			t.Fatalf("expected mode validation error, got %v", err)
		}
	})
}

func TestStatsCachesUntilChange(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	quiz := f.createQuiz(t, owner)
	ctx := context.Background()

	if _, err := f.stats.Leaderboard(ctx); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if _, ok, _ := f.cache.Get(ctx); !ok {
		t.Fatalf("leaderboard should be cached after a read")
	}
	if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, owner.ID, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, ok, _ := f.cache.Get(ctx); ok {
		t.Fatalf("recording an attempt should invalidate the cache")
	}
	board, err := f.stats.Leaderboard(ctx)
	if err != nil || len(board) != 1 {
		t.Fatalf("expected fresh board with one entry, got %+v, %v", board, err)
	}
}

func TestStatsSubscribeReceivesUpdates(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "alice")
	quiz := f.createQuiz(t, owner)
	ctx := context.Background()

	updates, cancel, err := f.stats.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	select {
	case initial := <-updates:
		if len(initial) != 0 {
			t.Fatalf("expected empty snapshot, got %+v", initial)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot")
	}

	if _, err := f.ledger.RecordAttempt(ctx, quiz.ID, owner.ID, []domain.Selection{domain.Single("right")}); err != nil {
		t.Fatalf("record: %v", err)
	}
	select {
	case board := <-updates:
		if len(board) != 1 || board[0].UserID != owner.ID || board[0].TotalCorrect != 1 {
			t.Fatalf("unexpected update %+v", board)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update after recording an attempt")
	}
}

func TestProfileStatsUnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stats.ProfileStats(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// gatedAttempts blocks the first ListAttempts after reading from the store,
// until release is closed.
type gatedAttempts struct {
	app.AttemptStore
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedAttempts(inner app.AttemptStore) *gatedAttempts {
	return &gatedAttempts{AttemptStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedAttempts) ListAttempts(ctx context.Context, filter app.AttemptFilter) ([]domain.Attempt, error) {
	attempts, err := g.AttemptStore.ListAttempts(ctx, filter)
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return attempts, err
}

type gatedStats struct {
	store  *memory.Store
	cache  *memory.LeaderboardCache
	gate   *gatedAttempts
	stats  *app.Stats
	ledger *app.Ledger
	quiz   domain.Quiz
}

func newGatedStats(t *testing.T) gatedStats {
	t.Helper()
	store := memory.NewStore()
	quiz := domain.Quiz{ID: "quiz-1", Title: "One", Questions: []domain.Question{
		{ID: "q1", Prompt: "p", Answers: []domain.Answer{{ID: "a1", Label: "right", IsCorrect: true}}},
	}}
	if err := store.CreateQuiz(context.Background(), quiz); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	cache := memory.NewLeaderboardCache(time.Minute)
	gate := newGatedAttempts(store)
	stats := app.NewStats(store, gate, store, cache, app.NewFeed())
	ledger := app.NewLedger(memory.NewQuizRepository(store, time.Minute), store, stats)
	return gatedStats{store: store, cache: cache, gate: gate, stats: stats, ledger: ledger, quiz: quiz}
}

func TestLeaderboardNotCachedWhenChangedDuringCompute(t *testing.T) {
	g := newGatedStats(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := g.stats.Leaderboard(ctx)
		done <- err
	}()
	<-g.gate.entered

	if _, err := g.ledger.RecordAttempt(ctx, g.quiz.ID, "u1", []domain.Selection{domain.Single("a1")}); err != nil {
		t.Fatalf("record: %v", err)
	}
	close(g.gate.release)
	if err := <-done; err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	if _, ok, _ := g.cache.Get(ctx); ok {
		t.Fatalf("board computed before the attempt was cached")
	}
	board, err := g.stats.Leaderboard(ctx)
	if err != nil || len(board) != 1 {
		t.Fatalf("expected fresh board with one entry, got %+v, %v", board, err)
	}
}

func TestSubscribeSeesChangeDuringSnapshot(t *testing.T) {
	g := newGatedStats(t)
	ctx := context.Background()

	type subscription struct {
		updates <-chan []domain.LeaderboardEntry
		cancel  func()
		err     error
	}
	subscribed := make(chan subscription, 1)
	go func() {
		updates, cancel, err := g.stats.Subscribe(ctx)
		subscribed <- subscription{updates, cancel, err}
	}()
	<-g.gate.entered

	if _, err := g.ledger.RecordAttempt(ctx, g.quiz.ID, "u1", []domain.Selection{domain.Single("a1")}); err != nil {
		t.Fatalf("record: %v", err)
	}
	close(g.gate.release)
	sub := <-subscribed
	if sub.err != nil {
		t.Fatalf("subscribe: %v", sub.err)
	}
	defer sub.cancel()

	select {
	case board := <-sub.updates:
		if len(board) != 1 || board[0].UserID != "u1" {
			t.Fatalf("first message should include the attempt, got %+v", board)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message after subscribing")
	}
	select {
	case board := <-sub.updates:
		t.Fatalf("stale snapshot delivered after the update: %+v", board)
	case <-time.After(50 * time.Millisecond):
	}
}

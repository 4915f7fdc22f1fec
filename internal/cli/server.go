package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quizhub-service/internal/app"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/config"
	"quizhub-service/internal/infra/memory"
	"quizhub-service/internal/infra/postgres"
	infraredis "quizhub-service/internal/infra/redis"
	transport "quizhub-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the set of persistence ports one backend provides.
type stores interface {
	app.QuizStore
	app.AttemptStore
	app.UserStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var store stores = memory.NewStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
	} else {
		log.Printf("postgres url not configured, using in-memory stores")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	leaderboardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)

	var quizRepo app.QuizRepository
	var boardCache app.LeaderboardCache
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, store, quizTTL)
		boardCache = infraredis.NewLeaderboardCache(redisClient, leaderboardTTL)
	} else {
		quizRepo = memory.NewQuizRepository(store, quizTTL)
		boardCache = memory.NewLeaderboardCache(leaderboardTTL)
	}

	stats := app.NewStats(store, store, store, boardCache, app.NewFeed())
	ledger := app.NewLedger(quizRepo, store, stats)
	catalog := app.NewCatalog(store, quizRepo, store, store, stats)
	users := app.NewUsers(store, store, ledger, quizRepo, stats)

	verifier := auth.NewJWTVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	router := transport.NewRouter(
		transport.NewAPI(catalog, ledger, stats, users),
		transport.NewWSHandler(stats),
		verifier,
		cfg.Server.CORSOrigins,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/config"
	"exam-attempt-service/internal/domain"
	"exam-attempt-service/internal/infra/memory"
	pginfra "exam-attempt-service/internal/infra/postgres"
	redisinfra "exam-attempt-service/internal/infra/redis"
	transport "exam-attempt-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
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
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 12*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.ExamLoader = memory.NewStaticExamLoader(sampleExams())
	if pool != nil {
		loader = pginfra.NewExamLoader(pool)
	}

	examTTL := config.TTLDuration(cfg.Exam.TTL, 10*time.Minute)
	var examRepo app.ExamRepository
	if redisClient != nil {
		examRepo = redisinfra.NewExamRepository(redisClient, loader, examTTL)
	} else {
		examRepo = memory.NewExamRepository(loader, examTTL)
	}

	var ledger app.AttemptLedger
	if pool != nil {
		ledger = pginfra.NewAttemptLedger(pool)
	} else {
		ledger = memory.NewAttemptLedger()
	}
	if redisClient != nil {
		ledger = redisinfra.NewAttemptLedger(redisClient, ledger, redisTTL)
	}

	service := app.NewAttemptService(ledger, examRepo)
	broadcaster := app.NewQuestionBroadcaster()
	handler := transport.NewHandler(service, broadcaster)
	wsHandler := transport.NewWSHandler(service, broadcaster)

	sweepInterval := config.TTLDuration(cfg.Sweep.Interval, 15*time.Second)
	reaper := app.NewDeadlineReaper(service, sweepInterval)
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go reaper.Run(reaperCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("GET /attempts/{id}/updates", wsHandler.ServeUpdates)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam attempt service on :%s", finalPort)
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

	stopReaper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleExams provides minimal exam data; swap the loader for the
// Postgres-backed one in production.
func sampleExams() map[string]domain.Exam {
	return map[string]domain.Exam{
		"exam-1": {
			ID:                "exam-1",
			Title:             "Sample arithmetic exam",
			TimeLimitType:     domain.TimeLimitSpecified,
			DurationMinutes:   30,
			AttemptLimitType:  domain.AttemptLimitUnlimited,
			AccessType:        domain.AccessAnyone,
			CanChangeAnswer:   true,
			AllowBlankAnswers: true,
			PassingScore:      50,
			StartDatetime:     time.Now().Add(-time.Hour),
			EndDatetime:       time.Now().Add(24 * time.Hour),
			ShowScore:         true,
			Questions: []domain.Question{
				{
					ID:      "q1",
					Text:    "What is 2 + 2?",
					OptionA: "3",
					OptionB: "4",
					OptionC: "5",
					OptionD: "6",
					Answer:  "B",
					Marks:   1,
				},
				{
					ID:      "q2",
					Text:    "What is 3 * 3?",
					OptionA: "6",
					OptionB: "8",
					OptionC: "9",
					OptionD: "12",
					Answer:  "C",
					Marks:   1,
				},
			},
		},
	}
}

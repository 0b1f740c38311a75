package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/scheduling-engine/configs"
	"github.com/maheshrc27/scheduling-engine/internal/analytics"
	"github.com/maheshrc27/scheduling-engine/internal/api/handlers"
	"github.com/maheshrc27/scheduling-engine/internal/api/middleware"
	job "github.com/maheshrc27/scheduling-engine/internal/jobs"
	"github.com/maheshrc27/scheduling-engine/internal/metrics"
	"github.com/maheshrc27/scheduling-engine/internal/queue"
	"github.com/maheshrc27/scheduling-engine/internal/ratelimit"
	"github.com/maheshrc27/scheduling-engine/internal/repository"
	"github.com/maheshrc27/scheduling-engine/internal/rules"
	"github.com/maheshrc27/scheduling-engine/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}
	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	scheduledPostRepo := repository.NewScheduledPostRepository(db)
	postingRuleRepo := repository.NewPostingRuleRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)
	contentRepo := repository.NewContentRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	limiter := ratelimit.New(
		ratelimit.WithSafetyMargin(cfg.Engine.RateLimitSafetyMargin),
		ratelimit.WithWaitObserver(m.ObserveRateLimitWait),
	)
	twitterService := service.NewTwitterService(*cfg, limiter, &http.Client{})
	tokenService := service.NewTokenService(*cfg, socialAccountRepo)

	engine := rules.NewEngine(scheduledPostRepo, postingRuleRepo, settingsRepo, contentRepo)

	sinks := []analytics.Sink{analytics.NewHistorySink(historyRepo), analytics.LogSink{}}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := analytics.NewKafkaSink(cfg.KafkaBrokers, cfg.AnalyticsTopic)
		if err != nil {
			log.Fatalf("Failed to create kafka client: %v", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	recorder := analytics.NewRecorder(5*time.Second, sinks...)

	notifier := queue.NewAsynqNotifier(client)

	schedulerService := service.NewSchedulerService(cfg.Engine, scheduledPostRepo, contentRepo, engine, notifier, recorder, m)
	publisherService := service.NewPublisherService(cfg.Engine, scheduledPostRepo, contentRepo, engine,
		limiter, tokenService, twitterService, notifier, recorder, m)
	rulesService := service.NewRulesService(postingRuleRepo, engine)
	settingsService := service.NewSettingsService(settingsRepo)
	attemptService := service.NewAttemptService(scheduledPostRepo, historyRepo)

	queueW := queue.NewQueue(cfg.Engine, scheduledPostRepo, publisherService, m)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tokenService)
	sweepJob := job.NewQueueSweepJob(queueW)

	c := cron.New()
	if _, err := c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Failed to schedule token refresh: %v", err)
	}
	if _, err := c.AddFunc(cfg.Engine.QueueInterval, sweepJob.Sweep); err != nil {
		log.Fatalf("Invalid queue interval %q: %v", cfg.Engine.QueueInterval, err)
	}
	c.Start()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 2,
	})
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeProcessQueue, queueW.HandleProcessQueueTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/health", handlers.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	schedule := handlers.NewScheduleHandler(schedulerService, publisherService)
	api.Get("/schedule", schedule.Pending)
	api.Post("/schedule", schedule.Schedule)
	api.Post("/schedule/batch", schedule.BatchSchedule)
	api.Get("/schedule/:id", schedule.Status)
	api.Delete("/schedule/:id", schedule.Cancel)
	api.Put("/schedule/:id/reschedule", schedule.Reschedule)
	api.Post("/publish", schedule.Publish)
	api.Post("/publish/batch", schedule.BatchPublish)
	api.Get("/rules/check", schedule.CheckRules)
	api.Get("/history", schedule.History)

	attempts := handlers.NewAttemptsHandler(attemptService)
	api.Get("/schedule/:id/attempts", attempts.PostAttempts)
	api.Get("/history/attempts", attempts.RecentAttempts)

	postingRules := handlers.NewRulesHandler(rulesService)
	api.Get("/rules", postingRules.ListRules)
	api.Post("/rules", postingRules.CreateRule)
	api.Get("/rules/:id", postingRules.GetRule)
	api.Put("/rules/:id", postingRules.UpdateRule)
	api.Delete("/rules/:id", postingRules.DeleteRule)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/preferences", settings.GetPreferences)
	api.Put("/preferences", settings.UpdatePreferences)

	queueHandler := handlers.NewQueueHandler(queueW, client, schedulerService)
	api.Post("/queue/process", queueHandler.ProcessQueue)
	api.Get("/queue/info", queueHandler.QueueInfo)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, server, c, recorder)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron, recorder *analytics.Recorder) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	server.Shutdown()
	// Running jobs may still record events, so they finish before the recorder closes.
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Close(ctx); err != nil {
		log.Printf("Analytics events still pending at shutdown: %v", err)
	}

	log.Println("Server shutdown complete.")
}

package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"

	config "github.com/crosspost-app/crosspost/configs"
	"github.com/crosspost-app/crosspost/internal/alerts"
	"github.com/crosspost-app/crosspost/internal/api/handlers"
	"github.com/crosspost-app/crosspost/internal/api/middleware"
	"github.com/crosspost-app/crosspost/internal/dispatch"
	job "github.com/crosspost-app/crosspost/internal/jobs"
	"github.com/crosspost-app/crosspost/internal/media"
	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/queue"
	"github.com/crosspost-app/crosspost/internal/ratelimit"
	"github.com/crosspost-app/crosspost/internal/repository"
	"github.com/crosspost-app/crosspost/internal/service"
	"github.com/crosspost-app/crosspost/internal/status"
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

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)

	// The rate-limit counters share the Redis instance with the queue but
	// live on their own client so the two stay logically separable.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewScheduledPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	storageService := service.NewStorageService(*cfg)
	s3Client, err := storageService.Client()
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	checker := media.NewChecker(s3Client, cfg.R2)
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimits)
	emitter := alerts.NewEmitter(alertRepo, socialAccountRepo)
	tracker := status.NewTracker(postRepo, emitter.Hook())

	dispatcher := dispatch.NewDispatcher(map[string]dispatch.Publisher{
		models.PlatformInstagram: service.NewInstagramService(http.DefaultClient),
		models.PlatformFacebook:  service.NewFacebookService(http.DefaultClient),
		models.PlatformYoutube:   service.NewYoutubeService(),
	})

	postService := service.NewPostService(postRepo, socialAccountRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, emitter, client, inspector, cfg.MaxPublishRetries)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	mediaHandler := handlers.NewMediaHandler(storageService)
	api.Post("/media/upload", mediaHandler.Upload)

	alertHandler := handlers.NewAlertHandler(alertRepo)
	api.Get("/alerts", alertHandler.ListAlerts)
	api.Post("/alerts/read", alertHandler.MarkRead)

	account := handlers.NewAccountHandler(socialAccountRepo)
	api.Get("/accounts", account.ListSocialAccounts)
	api.Post("/accounts/remove", account.DeleteSocialAccount)

	// cron jobs
	stuckPostsJob := job.NewStuckPostsJob(postRepo, 30*time.Minute)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", stuckPostsJob.ReportStuckPosts)
	c.Start()

	// queue worker
	queueW := queue.NewQueue(tracker, checker, limiter, dispatcher, socialAccountRepo, cfg.SecretKey, cfg.MaxPublishRetries)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}

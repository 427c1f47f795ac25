package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"soomhub/market/internal/api"
	"soomhub/market/internal/api/middleware"
	"soomhub/market/internal/auth"
	"soomhub/market/internal/cache"
	"soomhub/market/internal/captcha"
	"soomhub/market/internal/config"
	"soomhub/market/internal/db"
	"soomhub/market/internal/email"
	"soomhub/market/internal/plates"
	"soomhub/market/internal/services"
	"soomhub/market/internal/storage"
	"soomhub/market/internal/tasks"
)

func init() {
	pflag.StringP("mode", "m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")
	pflag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
}

func main() {
	pflag.Parse()
	flags := viper.New()
	if err := flags.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatalf("Failed to bind command line flags: %v", err)
	}
	runMode := flags.GetString("mode")
	switch runMode {
	case "api", "bg", "img", "all":
	default:
		log.Fatalf("Invalid run mode: %s", runMode)
	}

	// Load configuration
	cfg, err := config.Load(runMode, flags.GetString("env-file"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Object storage
	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 client: %v", err)
	}
	s3StorageService := storage.NewS3Storage(cfg, s3Client)

	emailSender := buildEmailSender(cfg, redisClient)

	// Task client, shared by every mode that enqueues
	taskClient := tasks.NewClient(redisClient)
	defer func() {
		if err := taskClient.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}()
	enqueuer := tasks.NewEnqueuer(taskClient)

	// Services
	passwordPolicy, err := auth.NewPasswordPolicy(cfg.PasswordRegexp)
	if err != nil {
		log.Fatalf("Invalid password policy: %v", err)
	}
	userService := services.NewUserService(mongoDb, passwordPolicy, cfg.DefaultLocale)
	authService := services.NewAuthService(userService, cache.NewTokenDenylist(redisClient), cfg)
	templateService := services.NewEmailTemplateService(mongoDb, cfg.DefaultLocale)
	notifier := services.NewNotifier(userService, templateService, enqueuer, cfg)
	listingService := services.NewListingService(mongoDb, cfg, cache.NewListingCache(redisClient, cfg.GetCacheTTL), s3StorageService)
	locker := cache.NewRedisLocker(redisClient, cfg.ValidationLockTTL)
	submissionService := services.NewSubmissionService(mongoDb, listingService, locker, notifier)
	auctionService := services.NewAuctionService(mongoDb, listingService, locker)
	promoCodeService := services.NewPromoCodeService(mongoDb)
	cardTypeService := services.NewCardTypeService(mongoDb)
	bankCardService := services.NewBankCardService(mongoDb, cardTypeService)
	plateService := services.NewLicensePlateService(mongoDb, listingService, plates.NewRenderer(0), s3StorageService, plates.ContentType)

	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, s3StorageService, listingService, submissionService, notifier)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var rateLimiter *middleware.RateLimiter
	var taskSrv *asynq.Server
	var scheduler *tasks.Scheduler

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	isAPI := cfg.RunMode == "api" || cfg.RunMode == "all"
	isBg := cfg.RunMode == "bg" || cfg.RunMode == "all"
	isImg := cfg.RunMode == "img" || cfg.RunMode == "all"

	if isAPI {
		fmt.Println("Starting main API server...")
		rateLimiter = middleware.NewRateLimiter(cfg, time.Minute)
		router := api.SetupRouter(&api.Services{
			Auth:          authService,
			Users:         userService,
			Notifier:      notifier,
			Listings:      listingService,
			Submissions:   submissionService,
			Auctions:      auctionService,
			PromoCodes:    promoCodeService,
			CardTypes:     cardTypeService,
			BankCards:     bankCardService,
			LicensePlates: plateService,
			Storage:       s3StorageService,
			Images:        enqueuer,
			Captcha:       captcha.NewTurnstileVerifier(cfg),
		}, rateLimiter)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	if srv, mux := tasks.SetupServer(redisClient, taskProcessor, isImg, isBg); srv != nil {
		fmt.Println("Starting task server...")
		if err := srv.Start(mux); err != nil {
			log.Fatalf("Task server error: %v", err)
		}
		taskSrv = srv
	}

	if isBg {
		scheduler, err = tasks.NewScheduler(enqueuer, cfg.ValidationReminderCron)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		scheduler.Start()
		fmt.Printf("Validation reminder sweep scheduled: %s\n", cfg.ValidationReminderCron)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
		rateLimiter.Stop()
	}

	if scheduler != nil {
		fmt.Println("Stopping scheduler...")
		scheduler.Stop(ctxShutdown)
	}

	if taskSrv != nil {
		fmt.Println("Shutting down task server...")
		taskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}

// buildEmailSender picks the primary sender (Redis when MOCK_SERVICES=true, otherwise SMTP)
// and adds a file logger when LOG_EMAILS names a path.
func buildEmailSender(cfg *config.Config, redisClient *redis.Client) email.Sender {
	var primary email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primary = email.NewRedisSender(redisClient, cfg)
	} else {
		primary = email.NewSMTPSender(cfg)
	}
	composite := email.NewCompositeEmailSender(primary)

	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath, cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			composite.AddSender(fileSender)
			log.Printf("LOG_EMAILS set, copying outgoing email to %s", logEmailsPath)
		}
	}
	return composite
}

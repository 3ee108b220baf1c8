package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"enoriel/autos/internal/api"
	"enoriel/autos/internal/cache"
	"enoriel/autos/internal/config"
	"enoriel/autos/internal/db"
	"enoriel/autos/internal/email"
	"enoriel/autos/internal/services"
	"enoriel/autos/internal/storage"
	"enoriel/autos/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (notifications), 'img' (attachment processing), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ledger (bookings, messages, activities, inquiries)
	ledger, err := db.ConnectLedger(cfg.LedgerDSN, cfg.LedgerLogLevel)
	if err != nil {
		log.Fatalf("Failed to connect to ledger: %v", err)
	}
	defer func() {
		if err := db.DisconnectLedger(ledger); err != nil {
			log.Printf("Error disconnecting from ledger: %v", err)
		}
	}()
	if err := db.MigrateLedger(ledger); err != nil {
		log.Fatalf("Failed to migrate ledger: %v", err)
	}

	// Catalog (cars, settings, templates)
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Printf("WARNING: %v", err)
	}
	cancelIndex()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Email: SMTP (or log), Redis capture for end-to-end tests, optional file outbox.
	primarySender := email.NewSMTPSender(cfg)
	if cfg.MockEmail {
		log.Println("MOCK_EMAIL enabled: capturing emails in Redis.")
		primarySender = email.NewRedisSender(redisClient)
	}
	var mirrors []email.Sender
	if cfg.EmailLogFile != "" {
		fileSender, err := email.NewFileEmailSender(cfg.EmailLogFile)
		if err != nil {
			log.Printf("WARNING: Failed to open email outbox '%s': %v. Proceeding without it.", cfg.EmailLogFile, err)
		} else {
			mirrors = append(mirrors, fileSender)
		}
	}
	emailSender := email.NewCompositeEmailSender(primarySender, mirrors...)

	configSvc := services.NewConfigService(mongoDb, cfg, redisClient)
	carService := services.NewCarService(mongoDb, cache.NewRedisCache(redisClient, cache.CarCachePrefix), cfg.CarCacheTTL)
	messageService := services.NewMessageService(ledger, cfg, configSvc)
	bookingService := services.NewBookingService(ledger, cfg, carService, messageService, configSvc)
	updateService := services.NewUpdateService(ledger, cfg.StoreTimeout)
	inquiryService := services.NewInquiryService(ledger, cfg.StoreTimeout, carService)
	activityService := services.NewActivityService(ledger, cfg.StoreTimeout)
	limiter := services.NewSubmissionLimiter(cache.NewRedisCounter(redisClient, cache.SubmissionPrefix), configSvc, cfg.SubmissionLimit, cfg.SubmissionWindow)
	templateService := services.NewEmailTemplateService(mongoDb)

	attachments, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	taskClient := tasks.NewClient(cfg)
	defer taskClient.Close()
	notifier := tasks.NewNotifier(taskClient, cfg)
	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, templateService, bookingService, carService, attachments)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
	}()

	var mainApiSrv *http.Server
	var workers []*asynq.Server

	log.Printf("Starting application in '%s' mode...", cfg.RunMode)

	apiMode := func() {
		router := api.SetupRouter(cfg, api.Deps{
			ConfigService: configSvc,
			Bookings:      bookingService,
			Messages:      messageService,
			Updates:       updateService,
			Inquiries:     inquiryService,
			Cars:          carService,
			Activities:    activityService,
			Limiter:       limiter,
			Attachments:   attachments,
			Notifier:      notifier,
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
		}()
	}

	workerMode := func(name string, isBgWorker, isImageWorker bool) {
		srv, mux := tasks.NewServer(cfg, taskProcessor, isBgWorker, isImageWorker)
		if err := srv.Start(mux); err != nil {
			log.Fatalf("%s worker error: %v", name, err)
		}
		log.Printf("%s worker started.", name)
		workers = append(workers, srv)
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		workerMode("Notification", true, false)
	case "img":
		workerMode("Attachment", false, true)
	case "all":
		apiMode()
		workerMode("Notification", true, false)
		workerMode("Attachment", false, true)
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

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

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	for _, srv := range workers {
		srv.Shutdown()
	}

	wg.Wait()
	log.Println("Server gracefully stopped")
}

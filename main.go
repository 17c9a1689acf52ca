package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "billwatch-backend/cmd/api"
	authdomain "billwatch-backend/internal/auth/domain"
	authRepo "billwatch-backend/internal/auth/repository"
	authUsecase "billwatch-backend/internal/auth/usecase"
	"billwatch-backend/internal/bridge"
	"billwatch-backend/internal/notification"
	"billwatch-backend/internal/scheduler"
	statementdomain "billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/parser"
	statementRepo "billwatch-backend/internal/statement/repository"
	statementUsecase "billwatch-backend/internal/statement/usecase"
	"billwatch-backend/pkg/ai"
	"billwatch-backend/pkg/config"
	"billwatch-backend/pkg/database"
	"billwatch-backend/pkg/fcm"
	"billwatch-backend/pkg/gmail"
	"billwatch-backend/pkg/imap"
	"billwatch-backend/pkg/sse"

	"golang.org/x/oauth2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&statementdomain.StatementSummary{}, &authdomain.DeviceToken{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	summaryRepo := statementRepo.NewSummaryRepository(db)
	deviceRepo := authRepo.NewDeviceTokenRepository(db)
	for _, token := range cfg.FCMDeviceTokens {
		if err := deviceRepo.SaveToken(ctx, "config", token, "FCM_DEVICE_TOKENS"); err != nil {
			log.Printf("[WARN] Failed to seed device token: %v", err)
		}
	}

	authUc := authUsecase.NewAuthUsecase(cfg.JWTSecret, cfg.JWTClientExpiry)
	if cfg.PrintClientToken {
		token, err := authUc.IssueToken("cli")
		if err != nil {
			log.Fatal("Failed to issue client token:", err)
		}
		fmt.Println(token)
	}

	// Initialize SSE Manager; every open stream is a foreground session
	sseManager := sse.NewManager()
	registry := bridge.NewRegistry()
	sseManager.SetHooks(registry.Connect, registry.Disconnect)
	go sseManager.Run()
	completer := bridge.NewCompleter(registry, sseManager)

	// Initialize the background engine with runtime-configurable settings
	settings := api.NewRuntimeSettings(cfg.AIProvider, cfg.OllamaBaseURL, cfg.OllamaModel)
	background, err := ai.NewCompletionService(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiApiKey,
		GeminiModel:      cfg.GeminiModel,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OpenAIModel:      cfg.OpenAIModel,
		GetOllamaBaseURL: settings.OllamaBaseURL,
		GetOllamaModel:   settings.OllamaModel,
	})
	if err != nil {
		log.Printf("Warning: Failed to initialize background engine: %v", err)
	} else {
		log.Printf("Background engine initialized: %s", background.Name())
	}
	router := statementUsecase.NewEngineRouter(background, completer, registry)

	// Mail source for scheduled scans
	var mail statementUsecase.MailSource
	var gmailService *gmail.Service
	switch cfg.MailSource {
	case "imap":
		mail = imap.NewSource(imap.Config{
			Addr:     cfg.IMAPAddr,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Mailbox:  cfg.IMAPMailbox,
		})
	default:
		if cfg.GoogleRefreshToken != "" {
			gmailService = gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRefreshToken, func(token *oauth2.Token) error {
				log.Printf("[Gmail] Access token refreshed, expires %s", token.Expiry.Format(time.RFC3339))
				return nil
			})
			mail = gmailService
		} else {
			log.Printf("[WARN] GOOGLE_REFRESH_TOKEN not set, inbox scans disabled")
		}
	}

	// Notifiers: log, connected clients and push when Firebase is configured
	notifiers := notification.MultiNotifier{notification.LogNotifier{}, notification.NewSSENotifier(sseManager)}
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			notifiers = append(notifiers, notification.NewFCMNotifier(fcmClient, deviceRepo))
		}
	}

	pipeline := statementUsecase.NewPipeline(router, parser.NewParser(cfg.ParserCutMarkers...), summaryRepo, mail, notifiers, statementUsecase.PipelineConfig{
		DueKeywords:     cfg.DueKeywords,
		SuccessKeywords: cfg.SuccessKeywords,
		ScanWindow:      cfg.ScanWindow,
		Readiness: statementUsecase.ReadinessPolicy{
			Attempts: cfg.EngineReadyAttempts,
			Interval: cfg.EngineReadyInterval,
		},
	})

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("[WARN] Unknown TIMEZONE %q, using Local: %v", cfg.Timezone, err)
		loc = time.Local
	}
	sweeper := statementUsecase.NewReminderSweeper(summaryRepo, notifiers, cfg.ReminderWindow, loc)

	// Initialize scheduler
	sched := scheduler.New(loc)
	if err := scheduler.RegisterStatementJobs(sched, scheduler.Schedules{
		DueScan:     cfg.DueScanSchedule,
		Sweep:       cfg.SweepSchedule,
		SuccessScan: cfg.SuccessScanSchedule,
		KeepAlive:   cfg.KeepAliveSchedule,
	}, pipeline, sweeper); err != nil {
		log.Fatal("Failed to register triggers:", err)
	}
	sched.Start()

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured and Gmail is the source
	var notifService *notification.Service
	if cfg.GoogleProjectID != "" && gmailService != nil {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		notifService, err = notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, pipeline)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			if historyID, err := gmailService.Watch(ctx, fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, topicName)); err != nil {
				log.Printf("[ERROR] Failed to watch mailbox: %v", err)
			} else {
				log.Printf("[Gmail] Watching mailbox from history %d", historyID)
			}
			go notifService.Start(ctx)
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, push notifications from Gmail disabled")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(api.Dependencies{
		AuthUsecase: authUc,
		SSEManager:  sseManager,
		Config:      cfg,
		Statements:  pipeline,
		Completer:   completer,
		DeviceRepo:  deviceRepo,
		Settings:    settings,
		Engine:      background,
		Scheduler:   sched,
	})

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := handler.Start(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	if notifService != nil {
		if gmailService != nil {
			if err := gmailService.StopWatch(shutdownCtx); err != nil {
				log.Printf("[WARN] Failed to stop mailbox watch: %v", err)
			}
		}
		if err := notifService.Close(); err != nil {
			log.Printf("[WARN] Failed to close notification service: %v", err)
		}
	}
	sseManager.Stop()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] HTTP shutdown: %v", err)
	}
}

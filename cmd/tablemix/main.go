package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/tablemix/tablemix/internal/config"
	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/jobs"
	"github.com/tablemix/tablemix/internal/notify"
	"github.com/tablemix/tablemix/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting tablemix matching engine...")

	// Initialize database connection
	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}
	if err := database.Connect(cfg.DatabaseURL, logLevel); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize default database records
	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	// Wire up services
	eligibilityService := services.NewEligibilityService(database.DB)
	resultService := services.NewResultService(database.DB)
	matchingService := services.NewMatchingService(database.DB, eligibilityService, resultService)
	log.Printf("Matching services initialized")

	// Admin notification channel
	slackSettings, err := database.GetSlackSettings()
	if err != nil {
		log.Printf("Warning: could not load Slack settings, notifications disabled: %v", err)
		slackSettings = nil
	}
	notifier := notify.FromSettings(slackSettings)
	if slackSettings != nil && slackSettings.IsActive() {
		log.Printf("Slack notifications enabled on channel %s", slackSettings.AdminChannel)
	} else {
		log.Println("Slack notifications disabled")
	}

	// Start the auto-match sweep
	stop := make(chan struct{})
	autoMatchJob := jobs.NewAutoMatchJob(database.DB, matchingService, notifier)
	go autoMatchJob.Start(stop)
	log.Println("Auto-match sweep started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	close(stop)
	log.Println("Shutdown complete")
}

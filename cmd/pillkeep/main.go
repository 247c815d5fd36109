package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pillkeep/pillkeep/internal/advisor"
	"github.com/pillkeep/pillkeep/internal/backup"
	"github.com/pillkeep/pillkeep/internal/database"
	"github.com/pillkeep/pillkeep/internal/logging"
	"github.com/pillkeep/pillkeep/internal/push"
	"github.com/pillkeep/pillkeep/internal/server"
)

func main() {
	port := envOr("PILLKEEP_PORT", "8080")
	dbPath := envOr("PILLKEEP_DB_PATH", "pillkeep.db")

	logger := logging.Setup(os.Getenv("PILLKEEP_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		SecureCookies: os.Getenv("PILLKEEP_SECURE_COOKIES") == "true",
		Advisor: advisor.Config{
			APIKey: os.Getenv("PILLKEEP_ADVISOR_API_KEY"),
			Model:  os.Getenv("PILLKEEP_ADVISOR_MODEL"),
		},
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("PILLKEEP_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("PILLKEEP_VAPID_PRIVATE_KEY"),
		},
		Backup: backup.Config{
			S3: backup.S3Config{
				Bucket:    os.Getenv("PILLKEEP_S3_BUCKET"),
				Region:    envOr("PILLKEEP_S3_REGION", "us-east-1"),
				Endpoint:  os.Getenv("PILLKEEP_S3_ENDPOINT"),
				AccessKey: os.Getenv("PILLKEEP_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("PILLKEEP_S3_SECRET_KEY"),
			},
			DBPath:        dbPath,
			Passphrase:    os.Getenv("PILLKEEP_BACKUP_PASSPHRASE"),
			ScheduleHour:  envInt("PILLKEEP_BACKUP_SCHEDULE_HOUR", 3),
			RetentionDays: envInt("PILLKEEP_BACKUP_RETENTION_DAYS", 30),
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
		logger.Info("push scheduler started")
	}

	if mgr := srv.BackupManager(); mgr.Enabled() {
		mgr.Start(ctx)
		defer mgr.Stop()
		logger.Info("backup manager started")
	}

	// Hourly housekeeping for expired sessions and stale rate limit entries.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Pillkeep running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

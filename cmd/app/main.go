package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zanphear/planview/internal/config"
	"github.com/zanphear/planview/internal/db"
	httpServer "github.com/zanphear/planview/internal/http"
	"github.com/zanphear/planview/internal/http/handlers"
	"github.com/zanphear/planview/internal/http/middleware"
	"github.com/zanphear/planview/internal/logger"
	"github.com/zanphear/planview/internal/repository"
	"github.com/zanphear/planview/internal/service"
	"github.com/zanphear/planview/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub()
	defer hub.Close()
	if rdb != nil {
		relay := ws.NewRelay(rdb, hub)
		hub.SetRelay(relay)
		go relay.Run(ctx)
	}

	taskRepo := repository.NewTaskRepository(dbPool)
	userRepo := repository.NewUserRepository(dbPool)
	activity := service.NewActivityService(repository.NewActivityRepository(dbPool))
	notifications := service.NewNotificationService(repository.NewNotificationRepository(dbPool), hub)

	wf := cfg.Workflow
	tasks := service.NewTaskService(taskRepo, userRepo, activity, notifications, hub,
		service.WithStatuses(wf.InitialStatus, wf.DoneStatuses),
		service.WithHorizon(wf.HorizonDays),
	)

	reminders := service.NewReminderService(taskRepo, notifications, tasks.DoneStatuses(), wf.Location(), nil)
	scheduler := service.NewSchedulerService(wf.Location())
	if _, err := scheduler.ScheduleReminders(wf.ReminderTime, reminders); err != nil {
		logger.Fatal("failed to schedule reminders", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	checks := map[string]handlers.Check{"database": dbPool.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	r := gin.Default()

	// CORS for the browser client
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler:         handlers.NewHandler(tasks, notifications, activity),
		Health:          handlers.NewHealthHandler(version, checks),
		Hub:             hub,
		Tokens:          service.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Limiter:         middleware.NewRateLimiter(rdb),
		AllowedOrigin:   cfg.AllowedOrigin,
		WSSendBuffer:    wf.WSSendBuffer,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: time.Duration(cfg.RateLimitWindow) * time.Second,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

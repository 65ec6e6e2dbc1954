package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// NewRouter builds the HTTP surface: liveness and readiness probes,
// Prometheus metrics and, in webhook mode, the update endpoint.
// webhook may be nil.
func NewRouter(appCtx *app.AppContext, webhook http.Handler) *gin.Engine {
	if appCtx.Config.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": appCtx.Config.Log.Component, "status": "running"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.GET("/healthz", readiness(appCtx))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if webhook != nil {
		r.POST("/webhook", gin.WrapH(webhook))
	}
	return r
}

// readiness pings the database and, when configured, Redis.
func readiness(appCtx *app.AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		status := http.StatusOK
		if err := Ping(ctx, appCtx); err != nil {
			appCtx.Logger.Warn("readiness check failed", "err", err)
			checks["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		checks["status"] = http.StatusText(status)
		c.JSON(status, checks)
	}
}

// Ping checks every backing store the bot depends on.
func Ping(ctx context.Context, appCtx *app.AppContext) error {
	sqlDB, err := appCtx.DB.DB()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if appCtx.RedisCache != nil {
		if err := appCtx.RedisCache.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// StartHTTPServer serves handler on port until ctx is cancelled, then shuts
// down gracefully.
func StartHTTPServer(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

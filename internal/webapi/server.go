// Package webapi serves the page controllers and the credit ledger as JSON
// over HTTP.
package webapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/pages"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// ErrInvalidServerConfig indicates missing dependencies.
var ErrInvalidServerConfig = errors.New("invalid web api configuration")

// Config holds the listener settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
}

// Dependencies are the components the handlers delegate to.
type Dependencies struct {
	Pages  *pages.Controller
	Chrome *chrome.Chrome
	Logger *zap.Logger
}

// Run serves until ctx is cancelled, then shuts the listener down.
func Run(ctx context.Context, cfg Config, dependencies Dependencies) error {
	router, err := NewRouter(cfg, dependencies)
	if err != nil {
		return err
	}
	logger := loggerOrNop(dependencies.Logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("auction web api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter builds the gin engine.
func NewRouter(cfg Config, dependencies Dependencies) (*gin.Engine, error) {
	if dependencies.Pages == nil || dependencies.Chrome == nil {
		return nil, fmt.Errorf("%w: pages and chrome are required", ErrInvalidServerConfig)
	}
	handler := &httpHandler{
		pages:  dependencies.Pages,
		chrome: dependencies.Chrome,
		logger: loggerOrNop(dependencies.Logger),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/chrome", handler.handleChrome)

	api.GET("/session", handler.handleSession)
	api.POST("/session/login", handler.handleLogin)
	api.POST("/session/register", handler.handleRegister)
	api.DELETE("/session", handler.handleLogout)

	api.GET("/listings", handler.handleListings)
	api.POST("/listings", handler.handleCreateListing)
	api.GET("/listings/:id", handler.handleListing)
	api.GET("/listings/:id/editor", handler.handleEditor)
	api.PUT("/listings/:id", handler.handleUpdateListing)
	api.DELETE("/listings/:id", handler.handleDeleteListing)
	api.POST("/listings/:id/bids", handler.handlePlaceBid)

	api.GET("/profile", handler.handleProfile)
	api.PUT("/profile/avatar", handler.handleAvatar)

	api.GET("/credits", handler.handleCredits)
	api.GET("/credits/transactions", handler.handleTransactions)
	api.POST("/credits/sync", handler.handleReportCredits)
	api.POST("/credits/reconcile", handler.handleReconcile)
	api.POST("/credits/reservations", handler.handleReserve)
	api.DELETE("/credits/reservations/:id", handler.handleRelease)
	api.POST("/credits/reservations/:id/win", handler.handleWin)

	return router, nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

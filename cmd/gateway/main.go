package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	api "github.com/mind-engage/examprep/internal/api/http"
	auth "github.com/mind-engage/examprep/internal/auth/middleware"
	"github.com/mind-engage/examprep/internal/config"
	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/logging"
	"github.com/mind-engage/examprep/internal/session"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Mode == config.ModeOnline, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(dbh)
	accounts := account.NewStore(dbh, events, logger.Named("account"))
	store := exam.NewSQLStore(dbh, events, logger.Named("exam"))
	sessions := session.NewManager(store, logger.Named("session"), cfg.SessionRetention)

	if cfg.AuthSecret == "supersecret-dev-key" && cfg.Mode == config.ModeOnline {
		logger.Warn("AUTH_HMAC_SECRET is the development default")
	}
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)

	h := api.NewRouter(api.Deps{
		Auth:         authSvc,
		Accounts:     accounts,
		Exams:        store,
		Sessions:     sessions,
		Events:       events,
		Log:          logger,
		EnableSignup: cfg.EnableSignup,
		CORSOrigins:  cfg.CORSOrigins(),
		Ready:        dbh.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr), zap.String("mode", string(cfg.Mode)), zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	sessions.Close()
	logger.Info("stopped")
}

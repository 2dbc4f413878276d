// Command seed loads exams from a YAML file and creates them as the admin.
package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	"github.com/mind-engage/examprep/internal/config"
	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/logging"
	"github.com/mind-engage/examprep/internal/rbac"
	"github.com/mind-engage/examprep/internal/seed"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

func main() {
	file := flag.String("file", "seeds/exams.yaml", "seed file")
	email := flag.String("admin-email", "", "admin account email")
	password := flag.String("admin-password", "", "admin account password")
	flag.Parse()

	cfg := config.Load()
	logger, err := logging.New(false, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(dbh)
	acct, err := account.NewStore(dbh, events, logger).Authenticate(ctx, *email, *password)
	if err != nil {
		logger.Fatal("admin login failed", zap.Error(err))
	}
	if acct.Role != rbac.RoleAdmin {
		logger.Fatal("account is not the admin", zap.String("email", acct.Email))
	}

	f, err := seed.LoadFile(*file)
	if err != nil {
		logger.Fatal("read seed file", zap.Error(err))
	}
	store := exam.NewSQLStore(dbh, events, logger)
	n, err := seed.Apply(ctx, store, rbac.Viewer{ID: acct.ID, Role: acct.Role}, f, logger)
	if err != nil {
		logger.Fatal("seed failed", zap.Int("created", n), zap.Error(err))
	}
	logger.Info("seed done", zap.Int("created", n), zap.Int("in_file", len(f.Exams)))
}

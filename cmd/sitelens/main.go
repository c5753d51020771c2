// main.go - analytics engine host
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"

	"gorm.io/gorm"

	"sitelens/internal/analytics"
	"sitelens/internal/config"
	"sitelens/internal/database"
	"sitelens/internal/projects"
	"sitelens/internal/seeder"
	"sitelens/internal/timeframe"
)

func main() {
	seedCount := flag.Int("seed", 0, "seed the database with N journey events before reporting")
	domain := flag.String("domain", "", "project domain to report on (defaults to the first project)")
	filter := flag.String("filter", timeframe.Filter7Days, "report window: 24h, 3d, 7d, 30d, or 365d")
	flag.Parse()

	cfg := config.GetConfig()
	logger := newLogger(cfg)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := dbManager.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if *seedCount > 0 {
		s := seeder.NewSeeder(dbManager, logger, *seedCount)
		if err := s.Run(context.Background()); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	}

	db := dbManager.GetConnection()

	project, err := resolveProject(db, *domain)
	if err != nil {
		log.Fatalf("Failed to resolve project: %v", err)
	}

	tf := timeframe.NewTimeFrameFromFilter(*filter, &timeframe.DefaultTimeProvider{})
	params := analytics.NewProjectScopedQueryParams(tf, project.ID)

	report, err := analytics.BuildProjectReport(db, params)
	if err != nil {
		log.Fatalf("Failed to build report: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
}

func resolveProject(db *gorm.DB, domain string) (*projects.Project, error) {
	if domain != "" {
		return projects.GetProjectByDomain(db, domain)
	}

	all, err := projects.GetAllProjects(db)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		log.Fatal("No projects found; seed the database first with -seed")
	}
	return &all[0], nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch config.LogLevel(cfg.GetLogLevel()) {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

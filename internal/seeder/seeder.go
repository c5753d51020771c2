package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/funnels"
	"sitelens/internal/goals"
	"sitelens/internal/projects"
	"sitelens/internal/segments"
)

// Seeder generates realistic journey-based event data for local development.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
	}
}

// Run executes the seeding process
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("eventCount", s.EventCount))

	projectList, err := s.seedProjects()
	if err != nil {
		return fmt.Errorf("failed to seed projects: %w", err)
	}

	for _, project := range projectList {
		s.Logger.Info("Generating data for project", slog.String("domain", project.Domain))
		if err := s.generateJourneyData(ctx, project); err != nil {
			return fmt.Errorf("failed to generate data for %s: %w", project.Domain, err)
		}
		if err := s.seedDefinitions(project); err != nil {
			return fmt.Errorf("failed to seed definitions for %s: %w", project.Domain, err)
		}
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedProjects creates a handful of projects for testing
func (s *Seeder) seedProjects() ([]*projects.Project, error) {
	var projectList []*projects.Project
	db := s.DBManager.GetConnection()

	domains := []string{
		"example.com",
		"blog.example.com",
		"app.example.com",
	}

	for _, domain := range domains {
		var project projects.Project

		if err := db.Where("domain = ?", domain).First(&project).Error; err == nil {
			s.Logger.Info("Project already exists", slog.String("domain", project.Domain))
			projectList = append(projectList, &project)
			continue
		}

		project = projects.Project{
			Name:      domain,
			Domain:    domain,
			CreatedAt: time.Now().UTC(),
		}

		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			return tx.Create(&project).Error
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create project %s: %w", domain, err)
		}

		s.Logger.Info("Project created successfully", slog.Uint64("id", uint64(project.ID)), slog.String("domain", project.Domain))
		projectList = append(projectList, &project)
	}

	return projectList, nil
}

// generateJourneyData writes session-shaped event rows for a project.
func (s *Seeder) generateJourneyData(ctx context.Context, project *projects.Project) error {
	db := s.DBManager.GetConnection()
	eventsCreated := 0

	journeyTemplates := [][]string{
		{"/", "/about", "/contact"},
		{"/", "/features", "/pricing", "/signup"},
		{"/", "/blog", "/blog/article-1", "/signup"},
		{"/pricing", "/features", "/signup"},
		{"/", "/products", "/products/widget-a", "/products/gadget-b", "/pricing"},
		{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
		{"/", "/blog", "/blog/article-1", "/blog/article-2"},
		{"/", "/signup"},
		{"/", "/features", "/pricing", "/docs", "/signup"},
		{"/products", "/products/widget-a", "/pricing", "/signup"},
		{"/login", "/dashboard", "/settings"},
	}

	goalEvents := []struct {
		name     string
		metadata map[string]interface{}
	}{
		{name: "newsletter_signup", metadata: map[string]interface{}{"source": "footer"}},
		{name: "purchase", metadata: map[string]interface{}{"revenue": "29.99", "currency": "USD", "product": "premium_plan"}},
		{name: "demo_requested", metadata: map[string]interface{}{"company": "Example Corp", "plan": "enterprise"}},
		{name: "account_created", metadata: map[string]interface{}{"plan": "free", "source": "homepage"}},
		{name: "free_trial_started", metadata: map[string]interface{}{"plan": "pro", "duration": "14_days"}},
	}

	referrers := []string{
		"", // direct
		"https://google.com",
		"https://duckduckgo.com",
		"https://twitter.com",
		"https://github.com",
		"https://some-other-website.com/blog/post",
	}
	countries := []string{"US", "DE", "FR", "GB", "JP", "BR"}
	browsers := []string{"chrome", "firefox", "safari", "edge"}
	oses := []string{"windows", "macos", "linux", "ios", "android"}
	devices := []string{"desktop", "desktop", "desktop", "mobile", "tablet"}
	utmSources := []string{"", "", "google", "newsletter", "twitter"}

	avgPagesPerSession := 4
	numSessions := s.EventCount / avgPagesPerSession
	if numSessions < 10 {
		numSessions = 10
	}

	for session := 0; session < numSessions; session++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		journey := journeyTemplates[rand.IntN(len(journeyTemplates))]
		sessionID := fmt.Sprintf("seed-%d-%d", project.ID, session)
		referrer := referrers[rand.IntN(len(referrers))]
		country := countries[rand.IntN(len(countries))]
		browser := browsers[rand.IntN(len(browsers))]
		os := oses[rand.IntN(len(oses))]
		device := devices[rand.IntN(len(devices))]
		utmSource := utmSources[rand.IntN(len(utmSources))]

		baseTime := time.Now().UTC().Add(-time.Duration(rand.IntN(30*24*60*60)) * time.Second)
		cumulativeTime := time.Duration(0)

		for pageIndex, path := range journey {
			if pageIndex > 0 {
				cumulativeTime += time.Duration(rand.IntN(110)+10) * time.Second
			}

			event := events.Event{
				ProjectID: project.ID,
				SessionID: sessionID,
				EventType: events.EventTypePageView,
				Path:      path,
				Country:   country,
				Browser:   browser,
				OS:        os,
				Device:    device,
				Timestamp: baseTime.Add(cumulativeTime),
				CreatedAt: time.Now().UTC(),
			}
			if pageIndex == 0 {
				event.Referrer = referrer
				event.UTMSource = utmSource
			}

			if err := db.Create(&event).Error; err != nil {
				s.Logger.Error("Failed to create event during seeding", slog.Any("error", err))
			} else {
				eventsCreated++
			}
		}

		// 40% of sessions linger long enough to emit heartbeats
		if rand.Float64() < 0.4 {
			for beat := 1; beat <= rand.IntN(4)+1; beat++ {
				cumulativeTime += 15 * time.Second
				heartbeat := events.Event{
					ProjectID: project.ID,
					SessionID: sessionID,
					EventType: events.EventTypeHeartbeat,
					Path:      journey[len(journey)-1],
					Timestamp: baseTime.Add(cumulativeTime),
					CreatedAt: time.Now().UTC(),
				}
				if err := db.Create(&heartbeat).Error; err != nil {
					s.Logger.Error("Failed to create heartbeat during seeding", slog.Any("error", err))
				}
			}
		}

		// 20% of sessions finish with a custom goal event
		if rand.Float64() < 0.2 {
			goalEvent := goalEvents[rand.IntN(len(goalEvents))]
			metadataBytes, _ := json.Marshal(goalEvent.metadata)

			event := events.Event{
				ProjectID:  project.ID,
				SessionID:  sessionID,
				EventType:  events.EventTypeCustom,
				EventName:  goalEvent.name,
				Path:       journey[len(journey)-1],
				Properties: string(metadataBytes),
				Timestamp:  baseTime.Add(cumulativeTime + time.Minute),
				CreatedAt:  time.Now().UTC(),
			}
			if err := db.Create(&event).Error; err != nil {
				s.Logger.Error("Failed to create custom event during seeding", slog.Any("error", err))
			}
		}
	}

	s.Logger.Info("Generated journey-based events for project",
		slog.String("domain", project.Domain),
		slog.Int("sessions", numSessions),
		slog.Int("totalEvents", eventsCreated))
	return nil
}

// seedDefinitions creates a sample funnel, goal, and segment per project so
// the analysis entry points have something to chew on.
func (s *Seeder) seedDefinitions(project *projects.Project) error {
	db := s.DBManager.GetConnection()

	var funnelCount int64
	db.Model(&funnels.Funnel{}).Where("project_id = ?", project.ID).Count(&funnelCount)
	if funnelCount == 0 {
		funnel := funnels.Funnel{
			ProjectID: project.ID,
			Name:      "Signup funnel",
			Steps: []funnels.FunnelStep{
				{StepNumber: 1, StepType: funnels.StepTypeURL, MatchValue: "/pricing"},
				{StepNumber: 2, StepType: funnels.StepTypeURL, MatchValue: "/signup"},
				{StepNumber: 3, StepType: funnels.StepTypeEvent, MatchValue: "account_created"},
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := db.Create(&funnel).Error; err != nil {
			return fmt.Errorf("failed to create funnel: %w", err)
		}
	}

	var goalCount int64
	db.Model(&goals.ConversionGoal{}).Where("project_id = ?", project.ID).Count(&goalCount)
	if goalCount == 0 {
		goal := goals.ConversionGoal{
			ProjectID:  project.ID,
			Name:       "Purchase",
			GoalType:   goals.GoalTypeEvent,
			MatchValue: "purchase",
			CreatedAt:  time.Now().UTC(),
		}
		if err := db.Create(&goal).Error; err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}
	}

	var segmentCount int64
	db.Model(&segments.Segment{}).Where("project_id = ?", project.ID).Count(&segmentCount)
	if segmentCount == 0 {
		filters, _ := json.Marshal([]segments.Filter{
			{Field: segments.FieldCountry, Operator: segments.OperatorEquals, Value: "US", Logic: segments.LogicOr},
			{Field: segments.FieldDevice, Operator: segments.OperatorEquals, Value: "mobile"},
		})
		segment := segments.Segment{
			ProjectID: project.ID,
			Name:      "US or mobile",
			Filters:   string(filters),
			CreatedAt: time.Now().UTC(),
		}
		if err := db.Create(&segment).Error; err != nil {
			return fmt.Errorf("failed to create segment: %w", err)
		}
	}

	return nil
}

package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sitelens/internal/events"
	"sitelens/internal/funnels"
	"sitelens/internal/goals"
	"sitelens/internal/projects"
	"sitelens/internal/segments"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with sitelens's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all sitelens models for migration
func allModels() []any {
	return []any{
		&projects.Project{},
		&events.Event{},
		&funnels.Funnel{},
		&funnels.FunnelStep{},
		&goals.ConversionGoal{},
		&segments.Segment{},
	}
}

// SetupTestDB creates a test database with all sitelens models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	// Check cache first
	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// Create a unique named in-memory database for each test
	// cache=shared allows multiple connections to the same database
	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	// Apply SQLite pragmas
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	// Auto-migrate models
	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	// Cache the database
	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	// Register cleanup
	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestProject creates a test project in the database
func CreateTestProject(db *gorm.DB, domain string) projects.Project {
	var project projects.Project
	if db.Where("domain = ?", domain).First(&project).Error != nil {
		project = projects.Project{
			Name:      domain,
			Domain:    domain,
			CreatedAt: time.Now().UTC(),
		}
		db.Create(&project)
	}
	return project
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// PageView builds an unsaved page view event for testing
func PageView(projectID uint, sessionID, path string, timestamp time.Time) events.Event {
	return events.Event{
		ProjectID: projectID,
		SessionID: sessionID,
		EventType: events.EventTypePageView,
		Path:      path,
		Country:   "US",
		Browser:   "chrome",
		OS:        "windows",
		Device:    "desktop",
		Timestamp: timestamp,
		CreatedAt: time.Now().UTC(),
	}
}

// CustomEvent builds an unsaved custom event for testing
func CustomEvent(projectID uint, sessionID, eventName, properties string, timestamp time.Time) events.Event {
	return events.Event{
		ProjectID:  projectID,
		SessionID:  sessionID,
		EventType:  events.EventTypeCustom,
		EventName:  eventName,
		Properties: properties,
		Timestamp:  timestamp,
		CreatedAt:  time.Now().UTC(),
	}
}

// Heartbeat builds an unsaved heartbeat event for testing
func Heartbeat(projectID uint, sessionID, path string, timestamp time.Time) events.Event {
	return events.Event{
		ProjectID: projectID,
		SessionID: sessionID,
		EventType: events.EventTypeHeartbeat,
		Path:      path,
		Timestamp: timestamp,
		CreatedAt: time.Now().UTC(),
	}
}

// SaveEvents persists a batch of events, failing the test on error
func SaveEvents(t *testing.T, db *gorm.DB, evts []events.Event) {
	t.Helper()
	for i := range evts {
		require.NoError(t, db.Create(&evts[i]).Error)
	}
}

// CreateTestFunnel creates a funnel with ordered steps in the database
func CreateTestFunnel(t *testing.T, db *gorm.DB, projectID uint, name string, steps []funnels.FunnelStep) funnels.Funnel {
	t.Helper()

	funnel := funnels.Funnel{
		ProjectID: projectID,
		Name:      name,
		Steps:     steps,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&funnel).Error)
	return funnel
}

package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/models"
	"gorm.io/gorm"
)

// Monday 2024-06-03 08:00 UTC
var testNow = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// newTestDB opens a private in-memory SQLite database for the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared&_foreign_keys=on",
	}, "test")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()
	user := &models.User{
		FullName: name,
		Email:    strings.ToLower(name) + "@example.com",
		Role:     role,
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func testSchedulingConfig() *config.SchedulingConfig {
	cfg := config.DefaultConfig().Scheduling
	return &cfg
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []*MeetingTask
}

func (q *recordingQueue) Enqueue(task *MeetingTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) byType(taskType string) []*MeetingTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*MeetingTask
	for _, task := range q.tasks {
		if task.Type == taskType {
			out = append(out, task)
		}
	}
	return out
}

func sameIDs(got, want []uint) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[uint]int, len(got))
	for _, id := range got {
		seen[id]++
	}
	for _, id := range want {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

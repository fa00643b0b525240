package services

import (
	"encoding/json"
	"time"

	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/logger"
	"gorm.io/gorm"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditEntry is one authenticated write request.
type AuditEntry struct {
	Resource   string
	Action     string
	Message    string
	UserID     uint
	StatusCode int
	IP         string
	UserAgent  string
	Extra      interface{}
}

// Record persists the entry. Failures are logged, never returned, so auditing
// cannot break a request.
func (s *AuditService) Record(entry AuditEntry) {
	var extra string
	if entry.Extra != nil {
		if b, err := json.Marshal(entry.Extra); err == nil {
			extra = string(b)
		}
	}

	row := &models.AuditLog{
		Resource:   entry.Resource,
		Action:     entry.Action,
		Message:    entry.Message,
		StatusCode: entry.StatusCode,
		IP:         entry.IP,
		UserAgent:  truncate(entry.UserAgent, 500),
		Extra:      extra,
		CreatedAt:  time.Now().UTC(),
	}
	if entry.UserID > 0 {
		uid := entry.UserID
		row.UserID = &uid
	}

	if err := s.db.Create(row).Error; err != nil {
		logger.Warnf("[Audit] failed to record %s %s: %v", entry.Action, entry.Resource, err)
	}
}

// CleanupOlderThan deletes entries created before cutoff.
func (s *AuditService) CleanupOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff.UTC()).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}

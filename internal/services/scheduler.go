package services

import (
	"context"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	reminderLead = time.Hour
	cleanupCron  = "30 3 * * *"
)

// SchedulerService runs the periodic reminder and cleanup jobs.
type SchedulerService struct {
	db            *gorm.DB
	queue         TaskQueue
	audit         *AuditService
	cfg           config.SchedulingConfig
	cronScheduler *cron.Cron
	now           func() time.Time
}

func NewSchedulerService(db *gorm.DB, queue TaskQueue, audit *AuditService, cfg *config.SchedulingConfig) *SchedulerService {
	return &SchedulerService{
		db:    db,
		queue: queue,
		audit: audit,
		cfg:   *cfg,
		now:   time.Now,
	}
}

func (s *SchedulerService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SchedulerService) Start() error {
	s.cronScheduler = cron.New(cron.WithLocation(s.cfg.Location()))

	if _, err := s.cronScheduler.AddFunc(s.cfg.ReminderCron, func() {
		if _, err := s.SendReminders(context.Background()); err != nil {
			logger.Errorf("[Scheduler] reminder job failed: %v", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cronScheduler.AddFunc(cleanupCron, func() {
		s.Cleanup()
	}); err != nil {
		return err
	}

	s.cronScheduler.Start()
	logger.Infof("[Scheduler] started (reminders: %s, cleanup: %s)", s.cfg.ReminderCron, cleanupCron)
	return nil
}

func (s *SchedulerService) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// SendReminders enqueues one reminder per meeting starting within the next
// hour. A meeting is claimed by setting reminded_at before enqueueing, so a
// reminder is sent at most once even with several instances running.
func (s *SchedulerService) SendReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	var meetings []models.Meeting
	if err := db.Preload("Participants").
		Where("start_time > ? AND start_time <= ? AND reminded_at IS NULL", now, now.Add(reminderLead)).
		Order("start_time ASC").
		Find(&meetings).Error; err != nil {
		return 0, err
	}

	sent := 0
	for i := range meetings {
		m := &meetings[i]
		claim := db.Model(&models.Meeting{}).
			Where("id = ? AND reminded_at IS NULL", m.ID).
			Update("reminded_at", now)
		if claim.Error != nil {
			logger.Errorf("[Scheduler] failed to claim reminder for meeting %d: %v", m.ID, claim.Error)
			continue
		}
		if claim.RowsAffected == 0 {
			continue
		}

		recipients := []uint{m.CreatedBy}
		for _, p := range m.Participants {
			if p.Status != models.StatusDeclined {
				recipients = append(recipients, p.UserID)
			}
		}
		notify(s.queue, meetingTask(TaskTypeMeetingReminder, m, 0, recipients))
		sent++
	}

	if sent > 0 {
		logger.Infof("[Scheduler] queued %d meeting reminder(s)", sent)
	}
	return sent, nil
}

// Cleanup removes expired refresh tokens and audit entries past retention.
func (s *SchedulerService) Cleanup() {
	now := s.now().UTC()

	result := s.db.Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	if result.Error != nil {
		logger.Errorf("[Scheduler] refresh token cleanup failed: %v", result.Error)
	} else if result.RowsAffected > 0 {
		logger.Infof("[Scheduler] removed %d expired refresh token(s)", result.RowsAffected)
	}

	if s.audit == nil || s.cfg.LogRetentionDays <= 0 {
		return
	}
	removed, err := s.audit.CleanupOlderThan(now.AddDate(0, 0, -s.cfg.LogRetentionDays))
	if err != nil {
		logger.Errorf("[Scheduler] audit log cleanup failed: %v", err)
	} else if removed > 0 {
		logger.Infof("[Scheduler] removed %d audit log entries", removed)
	}
}

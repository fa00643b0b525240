package services

import (
	"context"

	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService delivers meeting tasks to their recipients over the
// event stream and, when configured, e-mail.
type NotificationService struct {
	db    *gorm.DB
	email *EmailService
	hub   *SSEHub
}

func NewNotificationService(db *gorm.DB, email *EmailService, hub *SSEHub) *NotificationService {
	return &NotificationService{db: db, email: email, hub: hub}
}

// Process is the TaskQueue processor for every meeting task type.
func (s *NotificationService) Process(ctx context.Context, task *MeetingTask) error {
	recipients := uniqueIDs(task.RecipientIDs)
	if len(recipients) == 0 {
		return nil
	}

	event := MeetingEvent{
		Type:      task.Type,
		MeetingID: task.MeetingID,
		Title:     task.Title,
		StartTime: task.StartTime,
		ActorID:   task.ActorID,
		Status:    task.Status,
	}
	if s.hub != nil {
		for _, id := range recipients {
			s.hub.Publish(id, event)
		}
	}

	if s.email == nil || !s.email.IsEnabled() {
		return nil
	}

	var emails []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND is_active = ?", recipients, true).
		Pluck("email", &emails).Error; err != nil {
		logger.Errorf("[Notification] Failed to load recipients for meeting %d: %v", task.MeetingID, err)
		return err
	}

	return s.email.SendMeetingNotification(task, emails)
}

// notify enqueues a task and logs instead of failing the caller.
func notify(queue TaskQueue, task *MeetingTask) {
	if queue == nil || len(task.RecipientIDs) == 0 {
		return
	}
	if err := queue.Enqueue(task); err != nil {
		logger.Warn().Err(err).Str("type", task.Type).Uint("meeting_id", task.MeetingID).Msg("[Notification] enqueue failed")
	}
}

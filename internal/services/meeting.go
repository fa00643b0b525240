package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/logger"
	"github.com/memeet/scheduler/pkg/response"
	"gorm.io/gorm"
)

// MeetingService is the only writer of meetings and participant links.
type MeetingService struct {
	db        *gorm.DB
	conflicts *ConflictService
	queue     TaskQueue
	enforce   bool
	loc       *time.Location
	now       func() time.Time
}

func NewMeetingService(db *gorm.DB, conflicts *ConflictService, queue TaskQueue, cfg *config.SchedulingConfig) *MeetingService {
	return &MeetingService{
		db:        db,
		conflicts: conflicts,
		queue:     queue,
		enforce:   cfg.EnforceConflicts,
		loc:       cfg.Location(),
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *MeetingService) SetClock(now func() time.Time) {
	s.now = now
}

type CreateMeetingRequest struct {
	Title        string    `json:"title" binding:"required,max=255"`
	Description  string    `json:"description"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	Duration     int       `json:"duration" binding:"required,min=1,max=1440"`
	Participants []uint    `json:"participants" binding:"required,min=1"`
}

// UpdateMeetingRequest carries only the fields to change. A nil
// Participants leaves the roster untouched.
type UpdateMeetingRequest struct {
	Title        *string    `json:"title" binding:"omitempty,max=255"`
	Description  *string    `json:"description"`
	StartTime    *time.Time `json:"start_time"`
	Duration     *int       `json:"duration" binding:"omitempty,min=1,max=1440"`
	Participants []uint     `json:"participants"`
}

type RespondRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted declined"`
}

type MeetingListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search    string `form:"search"`
	StartDate string `form:"start_date" binding:"omitempty,iso_date"`
	EndDate   string `form:"end_date" binding:"omitempty,iso_date"`
	Status    string `form:"status" binding:"omitempty,oneof=pending accepted declined"`
}

type MeetingListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Pages    int64            `json:"pages"`
	Items    []models.Meeting `json:"items"`
}

// Create writes the meeting and one pending link per participant atomically.
func (s *MeetingService) Create(ctx context.Context, organizerID uint, req *CreateMeetingRequest) (*models.Meeting, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewBadRequest("title is required")
	}
	if req.StartTime.IsZero() {
		return nil, response.NewBadRequest("start_time is required")
	}
	if err := validateDuration(req.Duration); err != nil {
		return nil, err
	}
	participants, err := validateRoster(organizerID, req.Participants)
	if err != nil {
		return nil, err
	}

	start := normalizeStart(req.StartTime)
	if start.Before(s.now()) {
		return nil, response.NewBadRequest("meeting start must not be in the past")
	}

	db := s.db.WithContext(ctx)
	if err := ensureUsersExist(db, participants); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, start, req.Duration, append([]uint{organizerID}, participants...), 0); err != nil {
		return nil, err
	}

	meeting := models.Meeting{
		Title:       title,
		Description: req.Description,
		StartTime:   start,
		Duration:    req.Duration,
		CreatedBy:   organizerID,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&meeting).Error; err != nil {
			return err
		}
		links := pendingLinks(meeting.ID, participants)
		return tx.Create(&links).Error
	})
	if err != nil {
		logger.Error().Err(err).Uint("organizer_id", organizerID).Msg("[Meeting] create failed")
		return nil, response.NewServerError("failed to create meeting", err)
	}

	notify(s.queue, meetingTask(TaskTypeMeetingInvited, &meeting, organizerID, participants))

	return s.load(db, meeting.ID)
}

// Update applies the supplied fields. Only the organizer may update. Links of
// untouched participants keep their status; removed participants lose their
// link and added ones start pending.
func (s *MeetingService) Update(ctx context.Context, actorID, meetingID uint, req *UpdateMeetingRequest) (*models.Meeting, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, response.NewBadRequest("title must not be empty")
	}
	if req.StartTime != nil && req.StartTime.IsZero() {
		return nil, response.NewBadRequest("start_time must not be empty")
	}
	if req.Duration != nil {
		if err := validateDuration(*req.Duration); err != nil {
			return nil, err
		}
	}
	var roster []uint
	if req.Participants != nil {
		var err error
		if roster, err = validateRoster(actorID, req.Participants); err != nil {
			return nil, err
		}
	}

	db := s.db.WithContext(ctx)
	meeting, err := s.find(db, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.CreatedBy != actorID {
		return nil, response.NewForbidden("only the organizer can update this meeting")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	start := meeting.StartTime
	timeChanged := false
	if req.StartTime != nil {
		if newStart := normalizeStart(*req.StartTime); !newStart.Equal(meeting.StartTime) {
			if newStart.Before(s.now()) {
				return nil, response.NewBadRequest("meeting start must not be in the past")
			}
			start = newStart
			timeChanged = true
			updates["start_time"] = newStart
			updates["reminded_at"] = nil
		}
	}
	duration := meeting.Duration
	if req.Duration != nil && *req.Duration != meeting.Duration {
		duration = *req.Duration
		timeChanged = true
		updates["duration"] = duration
	}

	current := meeting.ParticipantIDs()
	var added, removed []uint
	if req.Participants == nil {
		roster = current
	} else {
		added, removed = diffIDs(current, roster)
		if len(added) > 0 {
			if err := ensureUsersExist(db, added); err != nil {
				return nil, err
			}
		}
	}

	if timeChanged || len(added) > 0 {
		if err := s.checkConflicts(ctx, start, duration, append([]uint{actorID}, roster...), meeting.ID); err != nil {
			return nil, err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Meeting{}).Where("id = ?", meeting.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if len(removed) > 0 {
			if err := tx.Where("meeting_id = ? AND user_id IN ?", meeting.ID, removed).
				Delete(&models.MeetingParticipant{}).Error; err != nil {
				return err
			}
		}
		if len(added) > 0 {
			links := pendingLinks(meeting.ID, added)
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Uint("meeting_id", meeting.ID).Msg("[Meeting] update failed")
		return nil, response.NewServerError("failed to update meeting", err)
	}

	updated, err := s.load(db, meeting.ID)
	if err != nil {
		return nil, err
	}

	kept, _ := diffIDs(added, roster)
	notify(s.queue, meetingTask(TaskTypeMeetingInvited, updated, actorID, added))
	if len(updates) > 0 || len(removed) > 0 || len(added) > 0 {
		notify(s.queue, meetingTask(TaskTypeMeetingUpdated, updated, actorID, kept))
	}
	notify(s.queue, meetingTask(TaskTypeMeetingCancelled, updated, actorID, removed))

	return updated, nil
}

// Delete removes the links and then the meeting in one transaction.
func (s *MeetingService) Delete(ctx context.Context, actorID, meetingID uint) error {
	db := s.db.WithContext(ctx)
	meeting, err := s.find(db, meetingID)
	if err != nil {
		return err
	}
	if meeting.CreatedBy != actorID {
		return response.NewForbidden("only the organizer can delete this meeting")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", meeting.ID).Delete(&models.MeetingParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Meeting{}, meeting.ID).Error
	})
	if err != nil {
		logger.Error().Err(err).Uint("meeting_id", meeting.ID).Msg("[Meeting] delete failed")
		return response.NewServerError("failed to delete meeting", err)
	}

	notify(s.queue, meetingTask(TaskTypeMeetingCancelled, meeting, actorID, meeting.ParticipantIDs()))
	return nil
}

// RespondToInvite moves the actor's own link from pending to accepted or
// declined. Repeating the current answer is a no-op; changing it is refused.
func (s *MeetingService) RespondToInvite(ctx context.Context, actorID, meetingID uint, status string) (*models.MeetingParticipant, error) {
	if !models.IsResponseStatus(status) {
		return nil, response.NewBadRequest("status must be accepted or declined")
	}

	db := s.db.WithContext(ctx)
	meeting, err := s.find(db, meetingID)
	if err != nil {
		return nil, err
	}

	var link models.MeetingParticipant
	if err := db.Where("meeting_id = ? AND user_id = ?", meetingID, actorID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewForbidden("you are not a participant of this meeting")
		}
		return nil, response.NewServerError("failed to load invitation", err)
	}

	if link.Status == status {
		return &link, nil
	}
	if link.Status != models.StatusPending {
		return nil, response.NewConflict("invitation has already been answered", nil)
	}

	result := db.Model(&models.MeetingParticipant{}).
		Where("meeting_id = ? AND user_id = ? AND status = ?", meetingID, actorID, models.StatusPending).
		Update("status", status)
	if result.Error != nil {
		logger.Error().Err(result.Error).Uint("meeting_id", meetingID).Msg("[Meeting] respond failed")
		return nil, response.NewServerError("failed to update invitation", result.Error)
	}
	if result.RowsAffected == 0 {
		// answered concurrently
		return nil, response.NewConflict("invitation has already been answered", nil)
	}
	link.Status = status

	task := meetingTask(TaskTypeMeetingResponded, meeting, actorID, []uint{meeting.CreatedBy})
	task.Status = status
	notify(s.queue, task)

	return &link, nil
}

// GetByID returns the meeting to its organizer and participants only.
func (s *MeetingService) GetByID(ctx context.Context, actorID, meetingID uint) (*models.Meeting, error) {
	meeting, err := s.load(s.db.WithContext(ctx), meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.CreatedBy == actorID {
		return meeting, nil
	}
	for _, p := range meeting.Participants {
		if p.UserID == actorID {
			return meeting, nil
		}
	}
	return nil, response.NewForbidden("you do not have access to this meeting")
}

// List returns the meetings the actor organises or is invited to, newest
// start first.
func (s *MeetingService) List(ctx context.Context, actorID uint, req *MeetingListRequest) (*MeetingListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	db := s.db.WithContext(ctx)
	query := db.Model(&models.Meeting{}).
		Where("(created_by = ? OR id IN (?))", actorID,
			db.Model(&models.MeetingParticipant{}).Select("meeting_id").Where("user_id = ?", actorID))

	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("(title LIKE ? OR description LIKE ?)", like, like)
	}
	if req.StartDate != "" {
		from, err := time.ParseInLocation(models.DateLayout, req.StartDate, s.loc)
		if err != nil {
			return nil, response.NewBadRequest("start_date must be YYYY-MM-DD")
		}
		query = query.Where("start_time >= ?", from.UTC())
	}
	if req.EndDate != "" {
		to, err := time.ParseInLocation(models.DateLayout, req.EndDate, s.loc)
		if err != nil {
			return nil, response.NewBadRequest("end_date must be YYYY-MM-DD")
		}
		query = query.Where("start_time < ?", to.AddDate(0, 0, 1).UTC())
	}
	if req.Status != "" {
		query = query.Where("id IN (?)",
			db.Model(&models.MeetingParticipant{}).Select("meeting_id").Where("status = ?", req.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, response.NewServerError("failed to count meetings", err)
	}

	var meetings []models.Meeting
	offset := (req.Page - 1) * req.PageSize
	if err := query.
		Preload("Organizer").
		Preload("Participants.User").
		Order("start_time DESC").Order("id DESC").
		Offset(offset).Limit(req.PageSize).
		Find(&meetings).Error; err != nil {
		return nil, response.NewServerError("failed to list meetings", err)
	}

	return &MeetingListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Pages:    (total + int64(req.PageSize) - 1) / int64(req.PageSize),
		Items:    meetings,
	}, nil
}

func (s *MeetingService) checkConflicts(ctx context.Context, start time.Time, duration int, userIDs []uint, excludeID uint) error {
	if !s.enforce || s.conflicts == nil {
		return nil
	}
	eval, err := s.conflicts.Check(ctx, &CheckAvailabilityRequest{
		StartTime:        start,
		Duration:         duration,
		ParticipantIDs:   userIDs,
		ExcludeMeetingID: excludeID,
	})
	if err != nil {
		return err
	}
	if !eval.Usable {
		return response.NewConflict("the selected time is not available", eval.Conflicts)
	}
	return nil
}

// find loads the meeting with its links but without user rows.
func (s *MeetingService) find(db *gorm.DB, id uint) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := db.Preload("Participants").First(&meeting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("meeting not found")
		}
		return nil, response.NewServerError("failed to load meeting", err)
	}
	return &meeting, nil
}

func (s *MeetingService) load(db *gorm.DB, id uint) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := db.Preload("Organizer").Preload("Participants.User").First(&meeting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("meeting not found")
		}
		return nil, response.NewServerError("failed to load meeting", err)
	}
	return &meeting, nil
}

func validateDuration(minutes int) error {
	if minutes <= 0 || minutes > MaxMeetingMinutes {
		return response.NewBadRequest("duration must be between 1 and 1440 minutes")
	}
	return nil
}

// validateRoster de-duplicates ids and rejects an empty roster or one that
// names the organizer.
func validateRoster(organizerID uint, ids []uint) ([]uint, error) {
	roster := uniqueIDs(ids)
	if len(roster) == 0 {
		return nil, response.NewBadRequest("at least one participant is required")
	}
	for _, id := range roster {
		if id == organizerID {
			return nil, response.NewBadRequest("the organizer cannot be a participant")
		}
	}
	return roster, nil
}

// normalizeStart stores instants in UTC at second precision so they compare
// correctly in every driver.
func normalizeStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func pendingLinks(meetingID uint, userIDs []uint) []models.MeetingParticipant {
	links := make([]models.MeetingParticipant, 0, len(userIDs))
	for _, id := range userIDs {
		links = append(links, models.MeetingParticipant{MeetingID: meetingID, UserID: id, Status: models.StatusPending})
	}
	return links
}

// diffIDs returns the ids only in next (added) and only in prev (removed).
func diffIDs(prev, next []uint) (added, removed []uint) {
	inPrev := make(map[uint]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}
	inNext := make(map[uint]bool, len(next))
	for _, id := range next {
		inNext[id] = true
		if !inPrev[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !inNext[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func meetingTask(taskType string, m *models.Meeting, actorID uint, recipients []uint) *MeetingTask {
	return &MeetingTask{
		Type:         taskType,
		MeetingID:    m.ID,
		Title:        m.Title,
		StartTime:    m.StartTime,
		Duration:     m.Duration,
		ActorID:      actorID,
		RecipientIDs: recipients,
	}
}

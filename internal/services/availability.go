package services

import (
	"context"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/logger"
	"github.com/memeet/scheduler/pkg/response"
	"gorm.io/gorm"
)

type AvailabilityService struct {
	db        *gorm.DB
	loc       *time.Location
	lookahead int
	now       func() time.Time
}

func NewAvailabilityService(db *gorm.DB, cfg *config.SchedulingConfig) *AvailabilityService {
	return &AvailabilityService{
		db:        db,
		loc:       cfg.Location(),
		lookahead: cfg.LookaheadMonths,
		now:       time.Now,
	}
}

func (s *AvailabilityService) SetClock(now func() time.Time) {
	s.now = now
}

type AvailabilityQuery struct {
	StartDate string `form:"start_date" binding:"omitempty,iso_date"`
	EndDate   string `form:"end_date" binding:"omitempty,iso_date"`
}

type UpdateAvailabilityRequest struct {
	Dates       []string `json:"dates" binding:"required,min=1,dive,iso_date"`
	IsAvailable *bool    `json:"is_available" binding:"required"`
}

// Query returns the user's marks in [start, end], ordered by date. Missing
// bounds default to today and today plus the lookahead.
func (s *AvailabilityService) Query(ctx context.Context, userID uint, q *AvailabilityQuery) ([]models.UserAvailability, error) {
	today := s.now().In(s.loc)
	start, end := q.StartDate, q.EndDate
	if start == "" {
		start = today.Format(models.DateLayout)
	}
	if end == "" {
		endDay := today
		if from, err := time.Parse(models.DateLayout, start); err == nil {
			endDay = from
		}
		end = endDay.AddDate(0, s.lookahead, 0).Format(models.DateLayout)
	}
	if !isDate(start) || !isDate(end) {
		return nil, response.NewBadRequest("dates must be YYYY-MM-DD")
	}
	if start > end {
		return nil, response.NewBadRequest("start_date must not be after end_date")
	}

	marks := make([]models.UserAvailability, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date ASC").
		Find(&marks).Error; err != nil {
		return nil, response.NewServerError("failed to load availability", err)
	}
	return marks, nil
}

// Write replaces the user's rows for exactly the given dates.
func (s *AvailabilityService) Write(ctx context.Context, userID uint, dates []string, isAvailable bool) error {
	unique := make([]string, 0, len(dates))
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		if !isDate(d) {
			return response.NewBadRequest("dates must be YYYY-MM-DD")
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		unique = append(unique, d)
	}
	if len(unique) == 0 {
		return response.NewBadRequest("at least one date is required")
	}

	rows := make([]models.UserAvailability, 0, len(unique))
	for _, d := range unique {
		rows = append(rows, models.UserAvailability{UserID: userID, Date: d, IsAvailable: isAvailable})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND date IN ?", userID, unique).
			Delete(&models.UserAvailability{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		logger.Error().Err(err).Uint("user_id", userID).Msg("[Availability] write failed")
		return response.NewServerError("failed to update availability", err)
	}
	return nil
}

func isDate(v string) bool {
	_, err := time.Parse(models.DateLayout, v)
	return err == nil
}

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/logger"
	"github.com/memeet/scheduler/pkg/response"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// MaxMeetingMinutes bounds a single meeting to one day.
const MaxMeetingMinutes = 24 * 60

const (
	ConflictPast           = "past"
	ConflictOutsideHours   = "outside_hours"
	ConflictHoliday        = "holiday"
	ConflictUnavailableDay = "unavailable_day"
	ConflictMeetingOverlap = "meeting_overlap"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewInterval(start time.Time, minutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

// Overlaps reports whether the intervals share any instant. Touching
// endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// BusyInterval is the window occupied by an existing meeting.
type BusyInterval struct {
	MeetingID uint
	Title     string
	Interval
}

// ParticipantFacts are the blocking facts known for one participant.
type ParticipantFacts struct {
	UserID           uint
	UnavailableDates map[string]bool
	Busy             []BusyInterval
}

// Rules are the participant-independent constraints on a window.
type Rules struct {
	Location *time.Location
	DayStart time.Duration
	DayEnd   time.Duration
	// Holiday returns the holiday name for a local date, if any. Nil disables holiday blocks.
	Holiday func(date time.Time) (string, bool)
}

// Conflict explains why a window is blocked.
type Conflict struct {
	Kind      string     `json:"kind"`
	UserID    uint       `json:"user_id,omitempty"`
	Date      string     `json:"date,omitempty"`
	MeetingID uint       `json:"meeting_id,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Message   string     `json:"message"`
}

type Evaluation struct {
	Usable    bool       `json:"usable"`
	Conflicts []Conflict `json:"conflicts"`
}

// Evaluate decides whether window is usable for every participant. It has no
// side effects.
func Evaluate(window Interval, facts []ParticipantFacts, rules Rules, now time.Time) Evaluation {
	loc := rules.Location
	if loc == nil {
		loc = time.UTC
	}
	conflicts := make([]Conflict, 0)

	if window.Start.Before(now) {
		conflicts = append(conflicts, Conflict{
			Kind:    ConflictPast,
			Message: "meeting start must not be in the past",
		})
	}

	localStart := window.Start.In(loc)
	localEnd := window.End.In(loc)
	if clockOffset(localStart) < rules.DayStart || clockOffset(localEnd) > rules.DayEnd || !sameDate(localStart, localEnd) {
		conflicts = append(conflicts, Conflict{
			Kind:    ConflictOutsideHours,
			Date:    localStart.Format(models.DateLayout),
			Message: fmt.Sprintf("meeting must fall between %s and %s", formatOffset(rules.DayStart), formatOffset(rules.DayEnd)),
		})
	}

	dates := coveredDates(window, loc)

	if rules.Holiday != nil {
		for _, d := range dates {
			if name, ok := rules.Holiday(d); ok {
				conflicts = append(conflicts, Conflict{
					Kind:    ConflictHoliday,
					Date:    d.Format(models.DateLayout),
					Message: fmt.Sprintf("%s is a public holiday (%s)", d.Format(models.DateLayout), name),
				})
			}
		}
	}

	for _, p := range facts {
		for _, d := range dates {
			day := d.Format(models.DateLayout)
			if p.UnavailableDates[day] {
				conflicts = append(conflicts, Conflict{
					Kind:    ConflictUnavailableDay,
					UserID:  p.UserID,
					Date:    day,
					Message: fmt.Sprintf("user %d is unavailable on %s", p.UserID, day),
				})
			}
		}

		busy := append([]BusyInterval(nil), p.Busy...)
		sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
		for _, b := range busy {
			if !window.Overlaps(b.Interval) {
				continue
			}
			start, end := b.Start, b.End
			conflicts = append(conflicts, Conflict{
				Kind:      ConflictMeetingOverlap,
				UserID:    p.UserID,
				MeetingID: b.MeetingID,
				Start:     &start,
				End:       &end,
				Message:   fmt.Sprintf("user %d already has %q at that time", p.UserID, b.Title),
			})
		}
	}

	return Evaluation{Usable: len(conflicts) == 0, Conflicts: conflicts}
}

// clockOffset is the wall-clock time of t as an offset from midnight. It
// differs from elapsed time on DST transition days.
func clockOffset(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// coveredDates lists the local calendar dates touched by the window.
func coveredDates(window Interval, loc *time.Location) []time.Time {
	start := window.Start.In(loc)
	last := window.End.Add(-time.Nanosecond).In(loc)
	if window.End.Equal(window.Start) {
		last = start
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

	var dates []time.Time
	for !day.After(end) {
		dates = append(dates, day)
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// FactSource loads the blocking facts of one participant.
type FactSource interface {
	UnavailableDates(ctx context.Context, userID uint, from, to string) ([]string, error)
	BusyIntervals(ctx context.Context, userID uint, from, to time.Time, excludeMeetingID uint) ([]BusyInterval, error)
}

type dbFactSource struct {
	db *gorm.DB
}

func (f *dbFactSource) UnavailableDates(ctx context.Context, userID uint, from, to string) ([]string, error) {
	var dates []string
	err := f.db.WithContext(ctx).Model(&models.UserAvailability{}).
		Where("user_id = ? AND is_available = ? AND date >= ? AND date <= ?", userID, false, from, to).
		Order("date ASC").
		Pluck("date", &dates).Error
	return dates, err
}

// BusyIntervals returns meetings the user organises or has not declined that
// overlap [from, to).
func (f *dbFactSource) BusyIntervals(ctx context.Context, userID uint, from, to time.Time, excludeMeetingID uint) ([]BusyInterval, error) {
	var meetings []models.Meeting
	query := f.db.WithContext(ctx).Model(&models.Meeting{}).
		Where("start_time < ? AND start_time >= ?", to.UTC(), from.Add(-MaxMeetingMinutes*time.Minute).UTC()).
		Where("(created_by = ? OR id IN (?))", userID,
			f.db.Model(&models.MeetingParticipant{}).Select("meeting_id").
				Where("user_id = ? AND status <> ?", userID, models.StatusDeclined))
	if excludeMeetingID != 0 {
		query = query.Where("id <> ?", excludeMeetingID)
	}
	if err := query.Order("start_time ASC").Find(&meetings).Error; err != nil {
		return nil, err
	}

	busy := make([]BusyInterval, 0, len(meetings))
	for _, m := range meetings {
		b := BusyInterval{MeetingID: m.ID, Title: m.Title, Interval: NewInterval(m.StartTime, m.Duration)}
		if b.End.After(from) {
			busy = append(busy, b)
		}
	}
	return busy, nil
}

// ConflictService evaluates candidate windows against stored facts.
type ConflictService struct {
	db       *gorm.DB
	facts    FactSource
	holidays *HolidayService
	cfg      config.SchedulingConfig
	now      func() time.Time
}

func NewConflictService(db *gorm.DB, holidays *HolidayService, cfg *config.SchedulingConfig) *ConflictService {
	return &ConflictService{
		db:       db,
		facts:    &dbFactSource{db: db},
		holidays: holidays,
		cfg:      *cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *ConflictService) SetClock(now func() time.Time) {
	s.now = now
}

// SetFactSource replaces the store the facts are read from.
func (s *ConflictService) SetFactSource(facts FactSource) {
	s.facts = facts
}

type CheckAvailabilityRequest struct {
	StartTime        time.Time `json:"start_time" binding:"required"`
	Duration         int       `json:"duration" binding:"required,min=1,max=1440"`
	ParticipantIDs   []uint    `json:"participant_ids" binding:"required,min=1"`
	ExcludeMeetingID uint      `json:"exclude_meeting_id"`
}

// Check loads every participant's facts and evaluates the window. Any fetch
// failure aborts the evaluation; the window is never reported usable on
// partial data.
func (s *ConflictService) Check(ctx context.Context, req *CheckAvailabilityRequest) (*Evaluation, error) {
	if req.StartTime.IsZero() {
		return nil, response.NewBadRequest("start_time is required")
	}
	if req.Duration <= 0 || req.Duration > MaxMeetingMinutes {
		return nil, response.NewBadRequest("duration must be between 1 and 1440 minutes")
	}
	ids := uniqueIDs(req.ParticipantIDs)
	if len(ids) == 0 {
		return nil, response.NewBadRequest("at least one participant is required")
	}
	if err := ensureUsersExist(s.db.WithContext(ctx), ids); err != nil {
		return nil, err
	}

	rules, err := s.rules()
	if err != nil {
		return nil, response.NewServerError("invalid scheduling configuration", err)
	}

	window := NewInterval(req.StartTime, req.Duration)
	from, to := s.horizon(window, rules.Location)

	facts := make([]ParticipantFacts, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			dates, err := s.facts.UnavailableDates(gctx, id, from.Format(models.DateLayout), to.Format(models.DateLayout))
			if err != nil {
				return fmt.Errorf("unavailable dates of user %d: %w", id, err)
			}
			busy, err := s.facts.BusyIntervals(gctx, id, from, to, req.ExcludeMeetingID)
			if err != nil {
				return fmt.Errorf("meetings of user %d: %w", id, err)
			}
			set := make(map[string]bool, len(dates))
			for _, d := range dates {
				set[d] = true
			}
			facts[i] = ParticipantFacts{UserID: id, UnavailableDates: set, Busy: busy}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("[Conflict] failed to load participant facts")
		return nil, response.NewServerError("failed to load participant availability", err)
	}

	eval := Evaluate(window, facts, rules, s.now())
	return &eval, nil
}

func (s *ConflictService) rules() (Rules, error) {
	start, end, err := s.cfg.DayWindow()
	if err != nil {
		return Rules{}, err
	}
	rules := Rules{Location: s.cfg.Location(), DayStart: start, DayEnd: end}
	if s.holidays != nil && s.cfg.HolidayCountry != "" {
		country := s.cfg.HolidayCountry
		rules.Holiday = func(date time.Time) (string, bool) {
			return s.holidays.HolidayName(date, country)
		}
	}
	return rules, nil
}

// horizon is [today, today+lookahead] in local time, widened to cover window.
func (s *ConflictService) horizon(window Interval, loc *time.Location) (time.Time, time.Time) {
	now := s.now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, s.cfg.LookaheadMonths, 0)

	startDay := window.Start.In(loc)
	startDay = time.Date(startDay.Year(), startDay.Month(), startDay.Day(), 0, 0, 0, 0, loc)
	if startDay.Before(from) {
		from = startDay
	}
	if window.End.After(to) {
		to = window.End
	}
	return from, to
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ensureUsersExist fails with NotFound when any id has no active user.
func ensureUsersExist(db *gorm.DB, ids []uint) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id IN ? AND is_active = ?", ids, true).Count(&count).Error; err != nil {
		return response.NewServerError("failed to load participants", err)
	}
	if count != int64(len(ids)) {
		return response.NewNotFound("participant not found")
	}
	return nil
}

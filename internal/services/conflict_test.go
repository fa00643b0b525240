package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/response"
)

func atUTC(hour, minute int) time.Time {
	return time.Date(2024, 6, 10, hour, minute, 0, 0, time.UTC)
}

func officeRules() Rules {
	return Rules{Location: time.UTC, DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour}
}

func kinds(eval Evaluation) []string {
	out := make([]string, 0, len(eval.Conflicts))
	for _, c := range eval.Conflicts {
		out = append(out, c.Kind)
	}
	return out
}

func TestIntervalOverlaps(t *testing.T) {
	base := NewInterval(atUTC(10, 0), 30)
	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", NewInterval(atUTC(10, 0), 30), true},
		{"starts inside", NewInterval(atUTC(10, 15), 30), true},
		{"ends inside", NewInterval(atUTC(9, 45), 30), true},
		{"contains", NewInterval(atUTC(9, 0), 120), true},
		{"touches end", NewInterval(atUTC(10, 30), 30), false},
		{"touches start", NewInterval(atUTC(9, 30), 30), false},
		{"disjoint", NewInterval(atUTC(14, 0), 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, expected %v", got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("Overlaps() is not symmetric")
			}
		})
	}
}

func TestEvaluate_UnavailableDayBlocksWholeDay(t *testing.T) {
	facts := []ParticipantFacts{{UserID: 7, UnavailableDates: map[string]bool{"2024-06-10": true}}}

	for _, start := range []time.Time{atUTC(9, 0), atUTC(12, 30), atUTC(16, 0)} {
		eval := Evaluate(NewInterval(start, 60), facts, officeRules(), testNow)
		if eval.Usable {
			t.Errorf("window at %v should be blocked", start)
			continue
		}
		c := eval.Conflicts[0]
		if c.Kind != ConflictUnavailableDay || c.UserID != 7 || c.Date != "2024-06-10" {
			t.Errorf("unexpected conflict %+v", c)
		}
	}

	next := Evaluate(NewInterval(atUTC(9, 0).AddDate(0, 0, 1), 60), facts, officeRules(), testNow)
	if !next.Usable {
		t.Errorf("next day should be usable, got %v", kinds(next))
	}
}

func TestEvaluate_MeetingOverlapIsHalfOpen(t *testing.T) {
	facts := []ParticipantFacts{{
		UserID: 3,
		Busy:   []BusyInterval{{MeetingID: 11, Title: "Standup", Interval: NewInterval(atUTC(10, 0), 30)}},
	}}

	blocked := Evaluate(NewInterval(atUTC(10, 15), 30), facts, officeRules(), testNow)
	if blocked.Usable || len(blocked.Conflicts) != 1 {
		t.Fatalf("10:15 should be blocked once, got %v", kinds(blocked))
	}
	c := blocked.Conflicts[0]
	if c.Kind != ConflictMeetingOverlap || c.MeetingID != 11 || c.UserID != 3 {
		t.Errorf("unexpected conflict %+v", c)
	}
	if c.Start == nil || !c.Start.Equal(atUTC(10, 0)) || c.End == nil || !c.End.Equal(atUTC(10, 30)) {
		t.Errorf("conflict window = %v..%v", c.Start, c.End)
	}

	free := Evaluate(NewInterval(atUTC(10, 30), 30), facts, officeRules(), testNow)
	if !free.Usable {
		t.Errorf("10:30 should be usable, got %v", kinds(free))
	}
}

func TestEvaluate_RulesAndOrdering(t *testing.T) {
	rules := officeRules()
	rules.Holiday = func(d time.Time) (string, bool) {
		return "Founders Day", d.Format(models.DateLayout) == "2024-06-10"
	}
	facts := []ParticipantFacts{
		{
			UserID:           1,
			UnavailableDates: map[string]bool{"2024-06-10": true},
			Busy: []BusyInterval{
				{MeetingID: 5, Title: "Late", Interval: NewInterval(atUTC(16, 30), 60)},
				{MeetingID: 4, Title: "Early", Interval: NewInterval(atUTC(16, 0), 30)},
			},
		},
		{UserID: 2},
	}

	eval := Evaluate(NewInterval(atUTC(16, 0), 90), facts, rules, testNow)
	want := []string{ConflictOutsideHours, ConflictHoliday, ConflictUnavailableDay, ConflictMeetingOverlap, ConflictMeetingOverlap}
	got := kinds(eval)
	if len(got) != len(want) {
		t.Fatalf("conflicts = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("conflicts = %v, expected %v", got, want)
		}
	}
	if eval.Conflicts[3].MeetingID != 4 || eval.Conflicts[4].MeetingID != 5 {
		t.Error("overlaps should be ordered by start")
	}
}

func TestEvaluate_DayWindow(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		minutes int
		usable  bool
	}{
		{"first slot", atUTC(9, 0), 30, true},
		{"last slot", atUTC(16, 30), 30, true},
		{"too early", atUTC(8, 30), 60, false},
		{"runs late", atUTC(16, 45), 30, false},
		{"crosses midnight", atUTC(23, 30), 60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(NewInterval(tt.start, tt.minutes), nil, officeRules(), testNow)
			if eval.Usable != tt.usable {
				t.Errorf("Usable = %v, expected %v (%v)", eval.Usable, tt.usable, kinds(eval))
			}
		})
	}
}

func TestEvaluate_PastAndTimezone(t *testing.T) {
	past := Evaluate(NewInterval(testNow.Add(-2*time.Hour), 30), nil, Rules{Location: time.UTC, DayEnd: 24 * time.Hour}, testNow)
	if past.Usable || past.Conflicts[0].Kind != ConflictPast {
		t.Errorf("past window conflicts = %v", kinds(past))
	}

	// 15:00 UTC is 11:00 in New York
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	rules := Rules{Location: ny, DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour}
	if eval := Evaluate(NewInterval(atUTC(15, 0), 60), nil, rules, testNow); !eval.Usable {
		t.Errorf("local office hours not applied: %v", kinds(eval))
	}
	if eval := Evaluate(NewInterval(atUTC(10, 0), 60), nil, rules, testNow); eval.Usable {
		t.Error("06:00 local should be outside office hours")
	}
}

func TestEvaluate_CrossMidnightCoversBothDates(t *testing.T) {
	rules := Rules{Location: time.UTC, DayEnd: 48 * time.Hour}
	facts := []ParticipantFacts{{UserID: 1, UnavailableDates: map[string]bool{"2024-06-11": true}}}

	eval := Evaluate(NewInterval(atUTC(23, 30), 60), facts, rules, testNow)
	if eval.Usable {
		t.Fatal("cross-midnight window reported usable")
	}
	found := false
	for _, c := range eval.Conflicts {
		if c.Kind == ConflictUnavailableDay && c.Date == "2024-06-11" {
			found = true
		}
	}
	if !found {
		t.Errorf("second date not checked: %+v", eval.Conflicts)
	}
}

func TestEvaluate_DSTTransitionDaysUseWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	rules := Rules{Location: ny, DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour}
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		start  time.Time
		usable bool
	}{
		{"spring forward opening", time.Date(2024, 3, 10, 9, 0, 0, 0, ny), true},
		{"spring forward closing", time.Date(2024, 3, 10, 16, 30, 0, 0, ny), true},
		{"spring forward early", time.Date(2024, 3, 10, 8, 30, 0, 0, ny), false},
		{"fall back opening", time.Date(2024, 11, 3, 9, 0, 0, 0, ny), true},
		{"fall back closing", time.Date(2024, 11, 3, 16, 30, 0, 0, ny), true},
		{"fall back early", time.Date(2024, 11, 3, 8, 30, 0, 0, ny), false},
		{"fall back late", time.Date(2024, 11, 3, 16, 45, 0, 0, ny), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(NewInterval(tt.start, 30), nil, rules, jan1)
			if eval.Usable != tt.usable {
				t.Errorf("Usable = %v, expected %v (%v)", eval.Usable, tt.usable, kinds(eval))
			}
		})
	}
}

func newCheckFixture(t *testing.T) (*ConflictService, *meetingFixture) {
	t.Helper()
	f := newMeetingFixture(t, false)
	svc := NewConflictService(f.db, nil, testSchedulingConfig())
	svc.SetClock(fixedClock)
	return svc, f
}

func TestConflictCheck_LoadsStoredFacts(t *testing.T) {
	svc, f := newCheckFixture(t)
	ctx := context.Background()

	m := f.create(t, atUTC(10, 0), f.ana.ID, f.ben.ID)
	if _, err := f.svc.RespondToInvite(ctx, f.ben.ID, m.ID, models.StatusDeclined); err != nil {
		t.Fatal(err)
	}
	f.db.Create(&models.UserAvailability{UserID: f.cleo.ID, Date: "2024-06-10", IsAvailable: false})

	tests := []struct {
		name    string
		req     CheckAvailabilityRequest
		usable  bool
		blocked []uint
	}{
		{"pending participant is busy", CheckAvailabilityRequest{StartTime: atUTC(10, 15), Duration: 30, ParticipantIDs: []uint{f.ana.ID}}, false, []uint{f.ana.ID}},
		{"organizer is busy", CheckAvailabilityRequest{StartTime: atUTC(10, 15), Duration: 30, ParticipantIDs: []uint{f.org.ID}}, false, []uint{f.org.ID}},
		{"declined participant is free", CheckAvailabilityRequest{StartTime: atUTC(10, 15), Duration: 30, ParticipantIDs: []uint{f.ben.ID}}, true, nil},
		{"adjacent window", CheckAvailabilityRequest{StartTime: atUTC(10, 30), Duration: 30, ParticipantIDs: []uint{f.ana.ID}}, true, nil},
		{"excluded meeting", CheckAvailabilityRequest{StartTime: atUTC(10, 15), Duration: 30, ParticipantIDs: []uint{f.ana.ID}, ExcludeMeetingID: m.ID}, true, nil},
		{"unavailable day", CheckAvailabilityRequest{StartTime: atUTC(14, 0), Duration: 30, ParticipantIDs: []uint{f.cleo.ID, f.ben.ID}}, false, []uint{f.cleo.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			eval, err := svc.Check(ctx, &req)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if eval.Usable != tt.usable {
				t.Fatalf("Usable = %v, expected %v (%+v)", eval.Usable, tt.usable, eval.Conflicts)
			}
			var users []uint
			for _, c := range eval.Conflicts {
				users = append(users, c.UserID)
			}
			if !sameIDs(users, tt.blocked) {
				t.Errorf("blocked users = %v, expected %v", users, tt.blocked)
			}
		})
	}
}

func TestConflictCheck_HorizonCoversFarWindow(t *testing.T) {
	svc, f := newCheckFixture(t)
	far := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	f.db.Create(&models.UserAvailability{UserID: f.ana.ID, Date: "2025-01-06", IsAvailable: false})

	eval, err := svc.Check(context.Background(), &CheckAvailabilityRequest{StartTime: far, Duration: 30, ParticipantIDs: []uint{f.ana.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if eval.Usable {
		t.Error("unavailable date beyond the lookahead should still block")
	}
}

func TestConflictCheck_Holiday(t *testing.T) {
	f := newMeetingFixture(t, false)
	cfg := testSchedulingConfig()
	cfg.HolidayCountry = "US"
	svc := NewConflictService(f.db, NewHolidayService(), cfg)
	svc.SetClock(fixedClock)

	eval, err := svc.Check(context.Background(), &CheckAvailabilityRequest{
		StartTime: time.Date(2024, 7, 4, 10, 0, 0, 0, time.UTC), Duration: 30, ParticipantIDs: []uint{f.ana.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if eval.Usable || eval.Conflicts[0].Kind != ConflictHoliday {
		t.Errorf("expected holiday conflict, got %+v", eval.Conflicts)
	}
}

type failingFacts struct {
	failUser uint
}

func (f failingFacts) UnavailableDates(_ context.Context, userID uint, _, _ string) ([]string, error) {
	if userID == f.failUser {
		return nil, errors.New("connection reset")
	}
	return nil, nil
}

func (f failingFacts) BusyIntervals(context.Context, uint, time.Time, time.Time, uint) ([]BusyInterval, error) {
	return nil, nil
}

func TestConflictCheck_FailsClosed(t *testing.T) {
	svc, f := newCheckFixture(t)
	svc.SetFactSource(failingFacts{failUser: f.ben.ID})

	eval, err := svc.Check(context.Background(), &CheckAvailabilityRequest{
		StartTime: atUTC(10, 0), Duration: 30, ParticipantIDs: []uint{f.ana.ID, f.ben.ID},
	})
	if eval != nil {
		t.Errorf("no evaluation expected on partial data, got %+v", eval)
	}
	if !response.IsKind(err, response.KindPersistence) {
		t.Errorf("error = %v, expected persistence error", err)
	}
}

func TestConflictCheck_InvalidRequests(t *testing.T) {
	svc, f := newCheckFixture(t)

	tests := []struct {
		name string
		req  CheckAvailabilityRequest
		kind response.Kind
	}{
		{"unknown participant", CheckAvailabilityRequest{StartTime: atUTC(10, 0), Duration: 30, ParticipantIDs: []uint{f.ana.ID, 404}}, response.KindNotFound},
		{"no participants", CheckAvailabilityRequest{StartTime: atUTC(10, 0), Duration: 30}, response.KindValidation},
		{"zero duration", CheckAvailabilityRequest{StartTime: atUTC(10, 0), ParticipantIDs: []uint{f.ana.ID}}, response.KindValidation},
		{"missing start", CheckAvailabilityRequest{Duration: 30, ParticipantIDs: []uint{f.ana.ID}}, response.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if _, err := svc.Check(context.Background(), &req); !response.IsKind(err, tt.kind) {
				t.Errorf("Check() error = %v, expected kind %s", err, tt.kind)
			}
		})
	}
}

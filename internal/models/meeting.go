package models

import "time"

// Meeting is organised by one user and attended by its participants.
type Meeting struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	Title        string               `gorm:"size:255;not null" json:"title"`
	Description  string               `gorm:"type:text" json:"description"`
	StartTime    time.Time            `gorm:"index;not null" json:"start_time"`
	Duration     int                  `gorm:"not null" json:"duration"` // minutes, > 0
	CreatedBy    uint                 `gorm:"index;not null" json:"created_by"`
	Organizer    *User                `gorm:"foreignKey:CreatedBy" json:"organizer,omitempty"`
	Participants []MeetingParticipant `gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	RemindedAt   *time.Time           `json:"-"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (Meeting) TableName() string { return "meetings" }

// EndTime is the exclusive end of the meeting window.
func (m *Meeting) EndTime() time.Time {
	return m.StartTime.Add(time.Duration(m.Duration) * time.Minute)
}

// ParticipantIDs returns the ids of all invited users.
func (m *Meeting) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(m.Participants))
	for _, p := range m.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// MeetingParticipant links a user to a meeting with an independent response status.
type MeetingParticipant struct {
	MeetingID uint      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status    string    `gorm:"size:20;not null;default:pending;index" json:"status"` // pending, accepted, declined
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MeetingParticipant) TableName() string { return "meeting_participants" }

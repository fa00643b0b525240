package models

import "time"

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// UserAvailability marks a calendar date that deviates from the default
// "available" state. At most one row exists per (user, date).
type UserAvailability struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      uint      `gorm:"uniqueIndex:idx_user_date;not null" json:"-"`
	Date        string    `gorm:"uniqueIndex:idx_user_date;size:10;not null" json:"date"`
	IsAvailable bool      `gorm:"not null" json:"is_available"`
	CreatedAt   time.Time `json:"-"`
}

func (UserAvailability) TableName() string { return "user_availability" }

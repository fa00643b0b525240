package models

import "time"

// FreelancerProfile holds attributes that only apply to freelancers.
type FreelancerProfile struct {
	UserID          uint      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Skills          string    `gorm:"size:1000" json:"skills"`
	HourlyRate      float64   `json:"hourly_rate"`
	ExperienceYears int       `json:"experience_years"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (FreelancerProfile) TableName() string { return "freelancer_profiles" }

// ClientProfile holds attributes that only apply to clients.
type ClientProfile struct {
	UserID             uint      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Company            string    `gorm:"size:255" json:"company"`
	Industry           string    `gorm:"size:255" json:"industry"`
	ProjectDescription string    `gorm:"type:text" json:"project_description"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (ClientProfile) TableName() string { return "client_profiles" }

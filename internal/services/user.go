package services

import (
	"errors"
	"strings"

	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/internal/utils"
	"github.com/memeet/scheduler/pkg/logger"
	"github.com/memeet/scheduler/pkg/response"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Profile holds the role-specific attributes of a user. Exactly one of the
// variants is set, matching Role.
type Profile struct {
	Role       string                    `json:"role"`
	Freelancer *models.FreelancerProfile `json:"freelancer,omitempty"`
	Client     *models.ClientProfile     `json:"client,omitempty"`
}

type ProfileResponse struct {
	User                 *models.User `json:"user"`
	Profile              Profile      `json:"profile"`
	MeetingsCreated      int64        `json:"meetings_created"`
	MeetingsParticipated int64        `json:"meetings_participated"`
}

type FreelancerFields struct {
	Skills          *string  `json:"skills" binding:"omitempty,max=1000"`
	HourlyRate      *float64 `json:"hourly_rate" binding:"omitempty,min=0"`
	ExperienceYears *int     `json:"experience_years" binding:"omitempty,min=0,max=80"`
}

type ClientFields struct {
	Company            *string `json:"company" binding:"omitempty,max=255"`
	Industry           *string `json:"industry" binding:"omitempty,max=255"`
	ProjectDescription *string `json:"project_description"`
}

type UpdateProfileRequest struct {
	FullName        *string           `json:"full_name" binding:"omitempty,min=2,max=255"`
	Email           *string           `json:"email" binding:"omitempty,email,max=255"`
	Phone           *string           `json:"phone" binding:"omitempty,max=50"`
	CurrentPassword string            `json:"current_password"`
	NewPassword     string            `json:"new_password" binding:"omitempty,min=6"`
	Freelancer      *FreelancerFields `json:"freelancer"`
	Client          *ClientFields     `json:"client"`
}

type UserStats struct {
	MeetingsCreated  int64 `json:"meetings_created"`
	MeetingsAccepted int64 `json:"meetings_accepted"`
	MeetingsPending  int64 `json:"meetings_pending"`
}

type UserListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Role     string `form:"role" binding:"omitempty,user_role"`
}

type UserListResponse struct {
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Items    []models.UserSummary `json:"items"`
}

func (s *UserService) GetProfile(userID uint) (*ProfileResponse, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, response.NewServerError("failed to load profile", err)
	}

	profile, err := s.loadProfile(s.db, &user)
	if err != nil {
		return nil, response.NewServerError("failed to load profile", err)
	}

	resp := &ProfileResponse{User: &user, Profile: *profile}
	if err := s.db.Model(&models.Meeting{}).Where("created_by = ?", userID).Count(&resp.MeetingsCreated).Error; err != nil {
		return nil, response.NewServerError("failed to load profile", err)
	}
	if err := s.db.Model(&models.MeetingParticipant{}).Where("user_id = ?", userID).Count(&resp.MeetingsParticipated).Error; err != nil {
		return nil, response.NewServerError("failed to load profile", err)
	}
	return resp, nil
}

// UpdateProfile applies the supplied fields in one transaction. The profile
// variant must match the user's role.
func (s *UserService) UpdateProfile(userID uint, req *UpdateProfileRequest) (*ProfileResponse, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, response.NewServerError("failed to load profile", err)
	}

	if req.Freelancer != nil && user.Role != models.RoleFreelancer {
		return nil, response.NewBadRequest("freelancer fields are only valid for freelancers")
	}
	if req.Client != nil && user.Role != models.RoleClient {
		return nil, response.NewBadRequest("client fields are only valid for clients")
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if len(name) < 2 {
			return nil, response.NewBadRequest("full name must be at least 2 characters")
		}
		updates["full_name"] = name
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.NewPassword != "" || req.CurrentPassword != "" {
		if user.AuthType != models.AuthTypeLocal {
			return nil, response.NewBadRequest("directory users cannot change their password here")
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			return nil, response.NewBadRequest("current_password and new_password are both required")
		}
		if len(req.NewPassword) < 6 {
			return nil, response.NewBadRequest("password must be at least 6 characters")
		}
		if !utils.CheckPassword(req.CurrentPassword, user.Password) {
			return nil, response.NewBadRequest("current password is incorrect")
		}
		hashed, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			return nil, response.NewServerError("failed to update profile", err)
		}
		updates["password"] = hashed
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.Email != nil {
			email := normalizeEmail(*req.Email)
			if email != user.Email {
				var taken int64
				if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, userID).Count(&taken).Error; err != nil {
					return err
				}
				if taken > 0 {
					return response.NewBadRequest("email already in use")
				}
				updates["email"] = email
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Freelancer != nil {
			return updateFreelancer(tx, userID, req.Freelancer)
		}
		if req.Client != nil {
			return updateClient(tx, userID, req.Client)
		}
		return nil
	})
	if err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		logger.Error().Err(err).Uint("user_id", userID).Msg("[User] profile update failed")
		return nil, response.NewServerError("failed to update profile", err)
	}

	return s.GetProfile(userID)
}

func (s *UserService) GetStats(userID uint) (*UserStats, error) {
	stats := &UserStats{}
	if err := s.db.Model(&models.Meeting{}).Where("created_by = ?", userID).Count(&stats.MeetingsCreated).Error; err != nil {
		return nil, response.NewServerError("failed to load stats", err)
	}
	if err := s.db.Model(&models.MeetingParticipant{}).
		Where("user_id = ? AND status = ?", userID, models.StatusAccepted).Count(&stats.MeetingsAccepted).Error; err != nil {
		return nil, response.NewServerError("failed to load stats", err)
	}
	if err := s.db.Model(&models.MeetingParticipant{}).
		Where("user_id = ? AND status = ?", userID, models.StatusPending).Count(&stats.MeetingsPending).Error; err != nil {
		return nil, response.NewServerError("failed to load stats", err)
	}
	return stats, nil
}

// ListUsers is the directory participants are picked from. The caller is
// left out.
func (s *UserService) ListUsers(callerID uint, req *UserListRequest) (*UserListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.User{}).Where("id <> ? AND is_active = ?", callerID, true)
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("(full_name LIKE ? OR email LIKE ?)", like, like)
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, response.NewServerError("failed to list users", err)
	}

	var users []models.User
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("full_name ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, response.NewServerError("failed to list users", err)
	}

	items := make([]models.UserSummary, 0, len(users))
	for i := range users {
		items = append(items, users[i].Summary())
	}
	return &UserListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *UserService) loadProfile(db *gorm.DB, user *models.User) (*Profile, error) {
	profile := &Profile{Role: user.Role}
	switch user.Role {
	case models.RoleFreelancer:
		var fp models.FreelancerProfile
		if err := db.Where(models.FreelancerProfile{UserID: user.ID}).FirstOrInit(&fp).Error; err != nil {
			return nil, err
		}
		profile.Freelancer = &fp
	case models.RoleClient:
		var cp models.ClientProfile
		if err := db.Where(models.ClientProfile{UserID: user.ID}).FirstOrInit(&cp).Error; err != nil {
			return nil, err
		}
		profile.Client = &cp
	}
	return profile, nil
}

func updateFreelancer(tx *gorm.DB, userID uint, f *FreelancerFields) error {
	var fp models.FreelancerProfile
	if err := tx.Where(models.FreelancerProfile{UserID: userID}).FirstOrInit(&fp).Error; err != nil {
		return err
	}
	if f.Skills != nil {
		fp.Skills = strings.TrimSpace(*f.Skills)
	}
	if f.HourlyRate != nil {
		fp.HourlyRate = *f.HourlyRate
	}
	if f.ExperienceYears != nil {
		fp.ExperienceYears = *f.ExperienceYears
	}
	return tx.Save(&fp).Error
}

func updateClient(tx *gorm.DB, userID uint, c *ClientFields) error {
	var cp models.ClientProfile
	if err := tx.Where(models.ClientProfile{UserID: userID}).FirstOrInit(&cp).Error; err != nil {
		return err
	}
	if c.Company != nil {
		cp.Company = strings.TrimSpace(*c.Company)
	}
	if c.Industry != nil {
		cp.Industry = strings.TrimSpace(*c.Industry)
	}
	if c.ProjectDescription != nil {
		cp.ProjectDescription = *c.ProjectDescription
	}
	return tx.Save(&cp).Error
}

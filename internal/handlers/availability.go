package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/memeet/scheduler/internal/middleware"
	"github.com/memeet/scheduler/internal/services"
	"github.com/memeet/scheduler/pkg/response"
)

type AvailabilityHandler struct {
	availabilityService *services.AvailabilityService
}

func NewAvailabilityHandler(availabilityService *services.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService}
}

// GetOwn returns the caller's availability marks
// GET /api/users/availability
func (h *AvailabilityHandler) GetOwn(c *gin.Context) {
	h.respondMarks(c, middleware.GetUserID(c))
}

// GetForUser returns another user's marks so a meeting can be planned around them
// GET /api/users/:id/availability
func (h *AvailabilityHandler) GetForUser(c *gin.Context) {
	id, ok := paramID(c, "id", "user")
	if !ok {
		return
	}
	h.respondMarks(c, id)
}

// Update marks the given dates available or unavailable
// POST /api/users/availability
func (h *AvailabilityHandler) Update(c *gin.Context) {
	var req services.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.availabilityService.Write(c.Request.Context(), userID, req.Dates, *req.IsAvailable); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "availability updated successfully")
}

func (h *AvailabilityHandler) respondMarks(c *gin.Context, userID uint) {
	var q services.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	marks, err := h.availabilityService.Query(c.Request.Context(), userID, &q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, marks)
}

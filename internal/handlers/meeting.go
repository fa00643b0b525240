package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/memeet/scheduler/internal/middleware"
	"github.com/memeet/scheduler/internal/services"
	"github.com/memeet/scheduler/pkg/response"
)

type MeetingHandler struct {
	meetingService  *services.MeetingService
	conflictService *services.ConflictService
}

func NewMeetingHandler(meetingService *services.MeetingService, conflictService *services.ConflictService) *MeetingHandler {
	return &MeetingHandler{
		meetingService:  meetingService,
		conflictService: conflictService,
	}
}

// List returns the caller's meetings, newest start first
// GET /api/meetings
func (h *MeetingHandler) List(c *gin.Context) {
	var req services.MeetingListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.meetingService.List(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns one meeting with its participants
// GET /api/meetings/:id
func (h *MeetingHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}

	meeting, err := h.meetingService.GetByID(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, meeting)
}

// Create schedules a meeting organised by the caller
// POST /api/meetings
func (h *MeetingHandler) Create(c *gin.Context) {
	var req services.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	meeting, err := h.meetingService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, meeting)
}

// Update changes a meeting the caller organises
// PUT /api/meetings/:id
func (h *MeetingHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}

	var req services.UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	meeting, err := h.meetingService.Update(c.Request.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, meeting)
}

// Delete cancels a meeting the caller organises
// DELETE /api/meetings/:id
func (h *MeetingHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}

	if err := h.meetingService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "meeting deleted successfully")
}

// Respond records the caller's answer to an invitation
// PUT /api/meetings/:id/status
func (h *MeetingHandler) Respond(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}

	var req services.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	link, err := h.meetingService.RespondToInvite(c.Request.Context(), middleware.GetUserID(c), id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, link)
}

// CheckAvailability evaluates a candidate window without writing anything
// POST /api/meetings/check-availability
func (h *MeetingHandler) CheckAvailability(c *gin.Context) {
	var req services.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	eval, err := h.conflictService.Check(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, eval)
}

package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/response"
)

// Handler exposes the event commands and button callbacks the front-end
// drives. Actor identity arrives in the request because the gateway has
// already resolved the interacting user.
type Handler struct {
	svc *Service
}

// NewHandler creates an events handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	StartsAt  string `json:"starts_at"` // RFC3339, optional
	Category  string `json:"category"`
	Capacity  *int   `json:"capacity"` // 0 or absent = unlimited
	OwnerID   string `json:"owner_id" binding:"required"`
}

// UserRequest is the body for join/leave callbacks.
type UserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ActorRequest is the body for owner admin actions.
type ActorRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var startsAt *time.Time
	if req.StartsAt != "" {
		t, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		t = t.UTC()
		startsAt = &t
	}
	var capacity *int
	if req.Capacity != nil && *req.Capacity > 0 {
		capacity = req.Capacity
	} else if req.Capacity != nil && *req.Capacity < 0 {
		response.BadRequest(c, "capacity must be positive")
		return
	}

	ev, err := h.svc.Create(c.Request.Context(), CreateInput{
		ChannelID: req.ChannelID,
		Name:      req.Name,
		StartsAt:  startsAt,
		Category:  req.Category,
		Capacity:  capacity,
		OwnerID:   req.OwnerID,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			response.Conflict(c, "event already exists")
			return
		}
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, ev)
}

// Get handles GET /events/:messageID.
func (h *Handler) Get(c *gin.Context) {
	ev, err := h.svc.Get(c.Request.Context(), c.Param("messageID"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to fetch event")
		return
	}
	response.OK(c, ev)
}

// Participants handles GET /events/:messageID/participants.
func (h *Handler) Participants(c *gin.Context) {
	users, err := h.svc.Participants(c.Request.Context(), c.Param("messageID"))
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	if users == nil {
		users = []string{}
	}
	response.OK(c, gin.H{"participants": users})
}

// Join handles POST /events/:messageID/join.
func (h *Handler) Join(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reason, err := h.svc.Join(c.Request.Context(), c.Param("messageID"), req.UserID)
	if err != nil {
		response.Internal(c, "failed to register")
		return
	}
	switch reason {
	case "ok":
		response.OK(c, gin.H{"reason": reason})
	case "event_not_found":
		response.NotFound(c, reason)
	default: // already, full, closed
		response.Conflict(c, reason)
	}
}

// Leave handles POST /events/:messageID/leave.
func (h *Handler) Leave(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ok, err := h.svc.Leave(c.Request.Context(), c.Param("messageID"), req.UserID)
	if err != nil {
		response.Internal(c, "failed to withdraw")
		return
	}
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, gin.H{"reason": "ok"})
}

// Close handles POST /events/:messageID/close (owner only).
func (h *Handler) Close(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.svc.Close(c.Request.Context(), c.Param("messageID"), req.ActorID)
	switch {
	case err == nil:
		response.OK(c, gin.H{"closed": true})
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, models.ErrForbidden):
		response.Forbidden(c, "only the event owner may close it")
	default:
		response.Internal(c, "failed to close event")
	}
}

// Delete handles DELETE /events/:messageID (owner only; actor in query).
func (h *Handler) Delete(c *gin.Context) {
	actorID := c.Query("actor_id")
	if actorID == "" {
		response.BadRequest(c, "actor_id required")
		return
	}
	err := h.svc.Delete(c.Request.Context(), c.Param("messageID"), actorID)
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, models.ErrForbidden):
		response.Forbidden(c, "only the event owner may delete it")
	default:
		response.Internal(c, "failed to delete event")
	}
}

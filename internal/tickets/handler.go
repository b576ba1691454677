package tickets

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/response"
)

// Handler exposes the ticket button callbacks the front-end drives.
type Handler struct {
	mgr *Manager
}

// NewHandler creates a tickets handler.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// OpenRequest is the body for POST /tickets.
type OpenRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
}

// ActorRequest is the body for claim/close actions.
type ActorRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// Open handles POST /tickets.
func (h *Handler) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sess, err := h.mgr.Open(c.Request.Context(), req.OwnerID)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyOpen) {
			// Report the existing session's location back to the owner.
			c.JSON(http.StatusConflict, response.Body{Success: false, Error: "already_open", Data: sess})
			return
		}
		response.Internal(c, "failed to open ticket")
		return
	}
	response.Created(c, sess)
}

// Claim handles POST /tickets/:id/claim.
func (h *Handler) Claim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sess, err := h.mgr.Claim(c.Request.Context(), id, req.ActorID)
	switch {
	case err == nil:
		response.OK(c, sess)
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "session not found")
	case errors.Is(err, models.ErrForbidden):
		response.Forbidden(c, "not authorized to claim this ticket")
	case errors.Is(err, models.ErrClosed):
		response.Conflict(c, "session is closing")
	default:
		response.Internal(c, "failed to claim ticket")
	}
}

// Close handles POST /tickets/:id/close.
func (h *Handler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err = h.mgr.Close(c.Request.Context(), id, req.ActorID)
	switch {
	case err == nil:
		response.OK(c, gin.H{"closing": true})
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "session not found")
	case errors.Is(err, models.ErrForbidden):
		response.Forbidden(c, "not authorized to close this ticket")
	default:
		response.Internal(c, "failed to close ticket")
	}
}

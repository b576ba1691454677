package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubap159863/DcBot/config"
	"github.com/kubap159863/DcBot/pkg/response"
	"github.com/kubap159863/DcBot/pkg/utils"
)

// Handler issues admin API tokens against the configured credential.
type Handler struct {
	jwt    *JWTService
	cfg    config.JWTConfig
	hash   string
	logger *zap.Logger
}

// NewHandler creates the auth handler. A plain ADMIN_PASSWORD is hashed at
// startup so comparison is always against a bcrypt hash.
func NewHandler(jwtService *JWTService, cfg config.JWTConfig, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	hash := cfg.AdminPasswordHash
	if hash == "" && cfg.AdminPassword != "" {
		var err error
		hash, err = utils.HashPassword(cfg.AdminPassword)
		if err != nil {
			return nil, err
		}
	}
	return &Handler{jwt: jwtService, cfg: cfg, hash: hash, logger: logger}, nil
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	User     string `json:"user" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/login and returns a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.hash == "" || req.User != h.cfg.AdminUser || !utils.CheckPassword(req.Password, h.hash) {
		h.logger.Warn("failed admin login", zap.String("user", req.User))
		response.Unauthorized(c, "invalid credentials")
		return
	}
	token, err := h.jwt.Generate(req.User, RoleAdmin)
	if err != nil {
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, gin.H{"token": token})
}

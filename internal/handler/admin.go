package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamesfi/internal/access"
	"gamesfi/internal/service"
)

type AdminHandler struct {
	Gate     *access.Gate
	Settings *service.SystemSettingsService
	Logger   *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/admin")
	group.GET("/roles", h.getRoles)
	group.PUT("/roles/operator", h.setOperator)
	group.PUT("/roles/injector", h.setInjector)
	group.PUT("/roles/owner", h.transferOwnership)
	group.POST("/pause", h.pause)
	group.POST("/unpause", h.unpause)
	group.PUT("/switches/:key", h.setSwitch)
}

func (h *AdminHandler) getRoles(c *gin.Context) {
	if h.Gate == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	owner, err := h.Gate.Holder(ctx, access.RoleOwner)
	if err != nil {
		ServiceError(c, err)
		return
	}
	operator, err := h.Gate.Holder(ctx, access.RoleOperator)
	if err != nil {
		ServiceError(c, err)
		return
	}
	injector, err := h.Gate.Holder(ctx, access.RoleInjector)
	if err != nil {
		ServiceError(c, err)
		return
	}
	paused, err := h.Gate.IsPaused(ctx)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{
		"owner":    owner,
		"operator": operator,
		"injector": injector,
		"paused":   paused,
	}, nil)
}

type setRoleRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *AdminHandler) setOperator(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Gate.SetOperator(c.Request.Context(), caller(c), req.Address); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"operator": access.NormalizeAddress(req.Address)}, nil)
}

func (h *AdminHandler) setInjector(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Gate.SetInjector(c.Request.Context(), caller(c), req.Address); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"injector": access.NormalizeAddress(req.Address)}, nil)
}

func (h *AdminHandler) transferOwnership(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Gate.TransferOwnership(c.Request.Context(), caller(c), req.Address); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"owner": access.NormalizeAddress(req.Address)}, nil)
}

func (h *AdminHandler) pause(c *gin.Context) {
	if err := h.Gate.Pause(c.Request.Context(), caller(c)); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"paused": true}, nil)
}

func (h *AdminHandler) unpause(c *gin.Context) {
	if err := h.Gate.Unpause(c.Request.Context(), caller(c)); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"paused": false}, nil)
}

type setSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminHandler) setSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Gate.Require(c.Request.Context(), caller(c), access.RoleOwner); err != nil {
		ServiceError(c, err)
		return
	}
	var req setSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	key := c.Param("key")
	if err := h.Settings.SetEnabled(c.Request.Context(), key, req.Enabled); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"key": key, "enabled": req.Enabled}, nil)
}

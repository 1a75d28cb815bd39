package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gamesfi/internal/db"
)

type HealthHandler struct {
	DB *db.DB
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)
}

func (h *HealthHandler) healthz(c *gin.Context) {
	Ok(c, gin.H{"status": "ok"}, nil)
}

func (h *HealthHandler) readyz(c *gin.Context) {
	if err := db.Ping(h.DB); err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"status": "ready"}, nil)
}

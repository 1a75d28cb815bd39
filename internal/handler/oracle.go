package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gamesfi/internal/oracle"
	"gamesfi/internal/service"
)

type OracleHandler struct {
	Adapter    *oracle.Adapter
	Prediction *service.PredictionService
	Logger     *zap.Logger
}

func (h *OracleHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/oracle")
	group.GET("/prices/:feed", h.getPrice)
	group.POST("/updates", h.pushUpdate)
}

func (h *OracleHandler) getPrice(c *gin.Context) {
	if h.Adapter == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	price, err := h.Adapter.FetchPrice(c.Request.Context(), c.Param("feed"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, price, nil)
}

type pushUpdateRequest struct {
	FeedID      string          `json:"feed_id" binding:"required"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Expo        int32           `json:"expo"`
	PublishTime int64           `json:"publish_time" binding:"required"`
	Signature   string          `json:"signature" binding:"required"`
	FeePaid     int64           `json:"fee_paid"`
}

// pushUpdate routes signed updates through the prediction service so
// the operator role check applies.
func (h *OracleHandler) pushUpdate(c *gin.Context) {
	if h.Prediction == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req pushUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	price, err := h.Prediction.UpdatePythOracle(c.Request.Context(), caller(c), oracle.Update{
		FeedID:      req.FeedID,
		Price:       req.Price,
		Expo:        req.Expo,
		PublishTime: time.Unix(req.PublishTime, 0).UTC(),
		Signature:   req.Signature,
	}, req.FeePaid)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, price, nil)
}

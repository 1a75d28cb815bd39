package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamesfi/internal/repository"
	"gamesfi/internal/service"
)

type PredictionHandler struct {
	Service *service.PredictionService
	Logger  *zap.Logger
}

func (h *PredictionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/prediction")
	group.POST("/genesis/start", h.genesisStart)
	group.POST("/genesis/lock", h.genesisLock)
	group.POST("/execute", h.executeRound)
	group.POST("/recover", h.recoverRounds)
	group.GET("/rounds", h.listRounds)
	group.GET("/rounds/:epoch", h.getRound)
	group.POST("/rounds/:epoch/bets", h.placeBet)
	group.POST("/claims", h.claim)
	group.GET("/bets", h.listBets)
}

func (h *PredictionHandler) genesisStart(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	round, err := h.Service.GenesisStartRound(c.Request.Context(), caller(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *PredictionHandler) genesisLock(c *gin.Context) {
	round, err := h.Service.GenesisLockRound(c.Request.Context(), caller(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *PredictionHandler) executeRound(c *gin.Context) {
	round, err := h.Service.ExecuteRound(c.Request.Context(), caller(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *PredictionHandler) recoverRounds(c *gin.Context) {
	round, err := h.Service.RecoverRounds(c.Request.Context(), caller(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *PredictionHandler) listRounds(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPredictionRoundsParams{
		Limit:  limit,
		Offset: offset,
		Asc:    boolQueryPtr(c, "asc"),
	}
	rounds, total, err := h.Service.ListRounds(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, rounds, paginationMeta(limit, offset, total))
}

func (h *PredictionHandler) getRound(c *gin.Context) {
	epoch, ok := uint64Param(c, "epoch")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid epoch", nil)
		return
	}
	round, err := h.Service.RoundByEpoch(c.Request.Context(), epoch)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

type placeBetRequest struct {
	Direction string `json:"direction" binding:"required,oneof=bull bear"`
	Amount    int64  `json:"amount" binding:"required"`
}

func (h *PredictionHandler) placeBet(c *gin.Context) {
	epoch, ok := uint64Param(c, "epoch")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid epoch", nil)
		return
	}
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var bet any
	var err error
	if req.Direction == "bull" {
		bet, err = h.Service.BetBull(c.Request.Context(), caller(c), epoch, req.Amount)
	} else {
		bet, err = h.Service.BetBear(c.Request.Context(), caller(c), epoch, req.Amount)
	}
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, bet, nil)
}

type claimRequest struct {
	Epochs []uint64 `json:"epochs" binding:"required"`
}

func (h *PredictionHandler) claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	paid, err := h.Service.Claim(c.Request.Context(), caller(c), req.Epochs)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"paid": paid}, nil)
}

func (h *PredictionHandler) listBets(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		owner = caller(c)
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	bets, total, err := h.Service.BetsForOwner(c.Request.Context(), owner, limit, offset)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, bets, paginationMeta(limit, offset, total))
}

package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamesfi/internal/models"
	"gamesfi/internal/repository"
	"gamesfi/internal/service"
)

type LotteryHandler struct {
	Service *service.LotteryService
	Logger  *zap.Logger
}

func (h *LotteryHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/lottery")
	group.POST("/rounds", h.startRound)
	group.GET("/rounds", h.listRounds)
	group.GET("/rounds/:id", h.getRound)
	group.POST("/rounds/:id/close", h.closeRound)
	group.POST("/rounds/:id/draw", h.drawRound)
	group.POST("/rounds/:id/tickets", h.buyTickets)
	group.GET("/rounds/:id/tickets", h.listTickets)
	group.POST("/rounds/:id/claims", h.claimTickets)
	group.POST("/rounds/:id/injections", h.injectFunds)
	group.GET("/tickets", h.ticketsByIDs)
}

type startRoundRequest struct {
	EndTime          int64                   `json:"end_time" binding:"required"`
	PriceTicket      int64                   `json:"price_ticket" binding:"required"`
	DiscountDivisor  uint32                  `json:"discount_divisor" binding:"required"`
	RewardsBreakdown [models.Brackets]uint32 `json:"rewards_breakdown"`
	TreasuryFeeBp    uint32                  `json:"treasury_fee_bp"`
}

func (h *LotteryHandler) startRound(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req startRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	round, err := h.Service.StartRound(c.Request.Context(), caller(c), service.StartRoundParams{
		EndTime:          time.Unix(req.EndTime, 0).UTC(),
		PriceTicket:      req.PriceTicket,
		DiscountDivisor:  req.DiscountDivisor,
		RewardsBreakdown: req.RewardsBreakdown,
		TreasuryFeeBp:    req.TreasuryFeeBp,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *LotteryHandler) listRounds(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListLotteryRoundsParams{
		Limit:  limit,
		Offset: offset,
		Status: strQueryPtr(c, "status"),
		Asc:    boolQueryPtr(c, "asc"),
	}
	rounds, total, err := h.Service.ListRounds(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, rounds, paginationMeta(limit, offset, total))
}

func (h *LotteryHandler) getRound(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	round, err := h.Service.RoundByID(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *LotteryHandler) closeRound(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	round, err := h.Service.CloseLottery(c.Request.Context(), caller(c), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

func (h *LotteryHandler) drawRound(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	round, err := h.Service.DrawFinalNumberAndMakeClaimable(c.Request.Context(), caller(c), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, round, nil)
}

type buyTicketsRequest struct {
	Numbers []uint32 `json:"numbers" binding:"required"`
}

func (h *LotteryHandler) buyTickets(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	var req buyTicketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	tickets, cost, err := h.Service.BuyTickets(c.Request.Context(), caller(c), id, req.Numbers)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"tickets": tickets, "total_cost": cost}, nil)
}

func (h *LotteryHandler) listTickets(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	owner := c.Query("owner")
	if owner == "" {
		owner = caller(c)
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	tickets, total, err := h.Service.TicketsForOwner(c.Request.Context(), id, owner, limit, offset)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, tickets, paginationMeta(limit, offset, total))
}

type claimTicketsRequest struct {
	TicketIDs []uint64 `json:"ticket_ids" binding:"required"`
}

func (h *LotteryHandler) claimTickets(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	var req claimTicketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	paid, err := h.Service.ClaimTickets(c.Request.Context(), caller(c), id, req.TicketIDs)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"paid": paid}, nil)
}

type injectFundsRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *LotteryHandler) injectFunds(c *gin.Context) {
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid round id", nil)
		return
	}
	var req injectFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Service.InjectFunds(c.Request.Context(), caller(c), id, req.Amount); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"injected": req.Amount}, nil)
}

func (h *LotteryHandler) ticketsByIDs(c *gin.Context) {
	raw := c.QueryArray("id")
	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		id, err := parseUint64(v)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid ticket id", nil)
			return
		}
		ids = append(ids, id)
	}
	tickets, err := h.Service.TicketsByIDs(c.Request.Context(), ids)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, tickets, nil)
}

func parseUint64(v string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(v), 10, 64)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamesfi/internal/access"
	"gamesfi/internal/token"
)

type TokenHandler struct {
	Ledger *token.Ledger
	Gate   *access.Gate
	Logger *zap.Logger
}

func (h *TokenHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/token")
	group.GET("/balances/:address", h.getBalance)
	group.GET("/allowances", h.getAllowance)
	group.POST("/approvals", h.approve)
	group.POST("/mints", h.mint)
}

func (h *TokenHandler) getBalance(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	balance, err := h.Ledger.BalanceOf(c.Request.Context(), c.Param("address"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"address": access.NormalizeAddress(c.Param("address")), "balance": balance}, nil)
}

func (h *TokenHandler) getAllowance(c *gin.Context) {
	owner := c.Query("owner")
	spender := c.Query("spender")
	if owner == "" || spender == "" {
		Error(c, http.StatusBadRequest, "owner and spender are required", nil)
		return
	}
	amount, err := h.Ledger.Allowance(c.Request.Context(), owner, spender)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"owner": access.NormalizeAddress(owner), "spender": access.NormalizeAddress(spender), "amount": amount}, nil)
}

type approveRequest struct {
	Spender string `json:"spender" binding:"required"`
	Amount  int64  `json:"amount"`
}

func (h *TokenHandler) approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	owner := caller(c)
	if owner == "" {
		Error(c, http.StatusForbidden, "caller address required", nil)
		return
	}
	if err := h.Ledger.Approve(c.Request.Context(), owner, req.Spender, req.Amount); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"owner": owner, "spender": access.NormalizeAddress(req.Spender), "amount": req.Amount}, nil)
}

type mintRequest struct {
	To     string `json:"to" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// mint is owner gated; it exists so a standalone deployment can fund
// players without an external token bridge.
func (h *TokenHandler) mint(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Gate.Require(c.Request.Context(), caller(c), access.RoleOwner); err != nil {
		ServiceError(c, err)
		return
	}
	if err := h.Ledger.Mint(c.Request.Context(), req.To, req.Amount); err != nil {
		ServiceError(c, err)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("minted",
			zap.String("to", access.NormalizeAddress(req.To)),
			zap.Int64("amount", req.Amount))
	}
	Ok(c, gin.H{"to": access.NormalizeAddress(req.To), "amount": req.Amount}, nil)
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gamesfi/internal/access"
	"gamesfi/internal/money"
	"gamesfi/internal/oracle"
	"gamesfi/internal/service"
	"gamesfi/internal/token"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ServiceError translates engine sentinels into HTTP statuses so
// clients can tell retryable timing conflicts from permanent input
// errors.
func ServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		Error(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, access.ErrPaused):
		Error(c, http.StatusLocked, err.Error(), nil)
	case errors.Is(err, service.ErrRoundNotFound),
		errors.Is(err, oracle.ErrPriceNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrRoundStillOpen),
		errors.Is(err, service.ErrRoundNotClosed),
		errors.Is(err, service.ErrRoundNotClaimable),
		errors.Is(err, service.ErrTooEarlyToLock),
		errors.Is(err, service.ErrTooEarlyToExecute),
		errors.Is(err, service.ErrRoundWindowMissed),
		errors.Is(err, service.ErrDrawAlreadyExecuted),
		errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, service.ErrGenesisNotCompleted),
		errors.Is(err, service.ErrRoundNotOpen),
		errors.Is(err, service.ErrRoundNotBettable),
		errors.Is(err, oracle.ErrOracleStale),
		errors.Is(err, oracle.ErrStaleUpdate):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidRoundLength),
		errors.Is(err, service.ErrInvalidTicketPrice),
		errors.Is(err, service.ErrInvalidDiscountDivisor),
		errors.Is(err, service.ErrInvalidRewardsBreakdown),
		errors.Is(err, service.ErrInvalidTreasuryFee),
		errors.Is(err, service.ErrEmptyTicketsOrTooMany),
		errors.Is(err, service.ErrInvalidTicketNumber),
		errors.Is(err, service.ErrNotTicketOwner),
		errors.Is(err, service.ErrTicketAlreadyClaimed),
		errors.Is(err, service.ErrBetAmountTooLow),
		errors.Is(err, service.ErrAlreadyBet),
		errors.Is(err, service.ErrAlreadyClaimed),
		errors.Is(err, service.ErrNotEligible),
		errors.Is(err, money.ErrArithmeticOverflow),
		errors.Is(err, money.ErrNegativeAmount),
		errors.Is(err, money.ErrInvalidFee),
		errors.Is(err, money.ErrInvalidDivisor),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, oracle.ErrInsufficientFee),
		errors.Is(err, oracle.ErrInvalidUpdatePayload),
		errors.Is(err, access.ErrInvalidAddress):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func boolQueryPtr(c *gin.Context, key string) *bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
	}
	return nil
}

func uint64Param(c *gin.Context, key string) (uint64, bool) {
	val := strings.TrimSpace(c.Param(key))
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}

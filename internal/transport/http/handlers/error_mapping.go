package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// Detailed cases answer with the error text itself, which is safe for input errors only.
type ErrorCase struct {
	Err      error
	Status   int
	Message  string
	Detailed bool
}

// DomainErrorCases is the default mapping of the domain error taxonomy.
var DomainErrorCases = []ErrorCase{
	{Err: domain.ErrInvalidAddress, Status: http.StatusBadRequest, Detailed: true},
	{Err: domain.ErrInvalidInput, Status: http.StatusBadRequest, Detailed: true},
	{Err: domain.ErrSignatureMismatch, Status: http.StatusUnauthorized, Message: "signature does not match wallet"},
	{Err: domain.ErrChallengeExpired, Status: http.StatusUnauthorized, Message: "challenge expired or already used"},
	{Err: domain.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "unauthorized"},
	{Err: domain.ErrRateLimited, Status: http.StatusTooManyRequests, Detailed: true},
	{Err: domain.ErrInsufficientPoints, Status: http.StatusConflict, Message: "insufficient available points"},
	{Err: domain.ErrReserveExceeded, Status: http.StatusConflict, Message: "payout exceeds on-chain reserve"},
	{Err: domain.ErrTransactionFinal, Status: http.StatusConflict, Message: "transaction already in a terminal state"},
	{Err: domain.ErrConflict, Status: http.StatusConflict, Message: "resource already exists"},
	{Err: domain.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	{Err: domain.ErrChainUnavailable, Status: http.StatusServiceUnavailable, Message: "blockchain unavailable"},
	{Err: domain.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var cooldown *usecase.ClaimCooldownError
	if errors.As(err, &cooldown) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(cooldown.RetryAfter.Seconds()))))
	}

	for _, cs := range cases {
		if cs.Err == nil || !errors.Is(err, cs.Err) {
			continue
		}
		message := cs.Message
		if cs.Detailed || message == "" {
			message = err.Error()
		}
		resp := NewErrorResponse(c, message)
		resp.Code = domain.ErrorCode(err)
		c.JSON(cs.Status, resp)
		return
	}

	_ = c.Error(err)
	resp := NewErrorResponse(c, fallbackMessage)
	resp.Code = domain.ErrorCode(err)
	c.JSON(fallbackStatus, resp)
}

// RespondWithDomainError maps err through DomainErrorCases.
func RespondWithDomainError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, DomainErrorCases, http.StatusInternalServerError, "internal error")
}

func respondBadRequest(c *gin.Context, message string) {
	resp := NewErrorResponse(c, message)
	resp.Code = domain.ErrInvalidInput.Code
	c.JSON(http.StatusBadRequest, resp)
}

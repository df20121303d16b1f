package httpgin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/cinehold/internal/service/catalog"
	"github.com/kirinyoku/cinehold/internal/service/query"
	"github.com/kirinyoku/cinehold/internal/service/reservation"
	"github.com/kirinyoku/cinehold/internal/service/settlement"
)

type errorMapping struct {
	target error
	status int
	msg    string
}

var errorMappings = []errorMapping{
	// reservation
	{reservation.ErrShowNotFound, http.StatusNotFound, "show not found"},
	{reservation.ErrInvalidRequest, http.StatusBadRequest, "invalid booking request"},
	{reservation.ErrSeatUnavailable, http.StatusConflict, "some seats are unavailable"},

	// settlement
	{settlement.ErrBookingNotFound, http.StatusNotFound, "booking not found"},
	{settlement.ErrUnauthorized, http.StatusForbidden, "booking belongs to another user"},
	{settlement.ErrBookingExpired, http.StatusGone, "booking has expired"},
	{settlement.ErrPaymentAlreadyInitiated, http.StatusConflict, "payment already initiated"},
	{settlement.ErrPayment, http.StatusBadGateway, "payment gateway unavailable"},
	{settlement.ErrInvalidSignature, http.StatusUnauthorized, "invalid signature"},
	{settlement.ErrInvalidPayload, http.StatusBadRequest, "invalid payload"},
	{settlement.ErrPaymentNotFound, http.StatusNotFound, "payment not found"},
	{settlement.ErrInvalidBookingState, http.StatusConflict, "booking is no longer held"},

	// query
	{query.ErrShowNotFound, http.StatusNotFound, "show not found"},
	{query.ErrBookingNotFound, http.StatusNotFound, "booking not found"},
	{query.ErrBookingNotConfirmed, http.StatusConflict, "booking is not confirmed"},

	// catalog
	{catalog.ErrScreenConflict, http.StatusConflict, "screen already exists"},
	{catalog.ErrScreenNotFound, http.StatusNotFound, "screen not found"},
	{catalog.ErrSeatsConflict, http.StatusConflict, "seats conflict"},
	{catalog.ErrShowOverlap, http.StatusConflict, "show overlaps another show"},
	{catalog.ErrInvalidRequest, http.StatusBadRequest, "invalid request"},
	{catalog.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, ErrorResponse{Error: m.msg})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

package httpgin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/cinehold/internal/domain"
	redisx "github.com/kirinyoku/cinehold/internal/redis"
	"github.com/kirinyoku/cinehold/internal/service"
	"github.com/kirinyoku/cinehold/internal/service/catalog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	defaultWebhookMaxBytes = 1 << 20
	idemLockTTL            = 30 * time.Second
)

// IdempotencyStore replays responses of requests carrying an Idempotency-Key.
type IdempotencyStore interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	GetResult(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

type RouterConfig struct {
	JWTSecret       string
	CORSOrigins     []string
	WebhookMaxBytes int64
}

// NewRouter builds the HTTP API. idem may be nil to disable Idempotency-Key
// replay.
func NewRouter(
	svcs *service.Services,
	idem IdempotencyStore,
	logger *slog.Logger,
	cfg RouterConfig,
) *gin.Engine {
	if cfg.WebhookMaxBytes <= 0 {
		cfg.WebhookMaxBytes = defaultWebhookMaxBytes
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS(cfg.CORSOrigins))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/shows/:id/seats", handleSeatsForShow(svcs))

	// authenticated by signature, not by token
	r.POST("/webhooks/razorpay", handleRazorpayWebhook(svcs, cfg.WebhookMaxBytes))

	auth := Authenticate(cfg.JWTSecret)

	user := r.Group("", auth, RequireRole(domain.RoleUser, domain.RoleAdmin))
	{
		user.POST("/shows/:id/bookings", handleInitiateBooking(svcs, idem))
		user.GET("/bookings", handleListBookings(svcs))
		user.GET("/bookings/:id/ticket", handleTicket(svcs))
		user.POST("/payments/orders", handleCreateOrder(svcs))
	}

	admin := r.Group("/admin", auth, RequireRole(domain.RoleAdmin, domain.RoleTheaterOwner))
	{
		admin.POST("/screens", handleCreateScreen(svcs))
		admin.POST("/screens/:id/seats", handleBatchCreateSeats(svcs))
		admin.POST("/shows", handleCreateShow(svcs))
	}

	return r
}

// @Summary  Seat map of a show
// @Param    id  path  int  true  "Show ID"
// @Success  200  {array}   SeatResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /shows/{id}/seats [get]
func handleSeatsForShow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		seats, err := svcs.Query.SeatsForShow(c.Request.Context(), showID)
		if err != nil {
			respondErr(c, err)
			return
		}

		// availability changes every few seconds; revalidate on each request
		writeJSONWithETag(c, http.StatusOK, toSeats(seats), "no-cache")
	}
}

// @Summary  Hold seats for a show (idempotent)
// @Security BearerAuth
// @Param    id  path  int  true  "Show ID"
// @Param    Idempotency-Key header string false "client generated key"
// @Param    req body  InitiateBookingRequest true "payload"
// @Success  201 {object} BookingSummaryResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / idempotency key in progress"
// @Failure  422 {object} ErrorResponse "idempotency key reused with a different request"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /shows/{id}/bookings [post]
func handleInitiateBooking(svcs *service.Services, idem IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)
		ctx := c.Request.Context()

		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req InitiateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		fingerprint := seatsFingerprint(req.SeatIDs)
		var storageKey string

		if idem != nil && idemKey != "" {
			storageKey = redisx.KeyIdemBooking(showID, p.UserID, idemKey)

			if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
				replay(c, idemKey, fingerprint, payload)
				return
			}

			locked, err := idem.AcquireLock(ctx, storageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}

			if !locked {
				if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
					replay(c, idemKey, fingerprint, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		sum, err := svcs.Reservation.Initiate(ctx, showID, req.SeatIDs, p.UserID)
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(ctx, storageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toBookingSummary(sum)

		if storageKey != "" {
			b, _ := json.Marshal(idemRecord{Fingerprint: fingerprint, Response: resp})
			_ = idem.SaveResult(ctx, storageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// idemRecord is what an Idempotency-Key resolves to once the request is done.
type idemRecord struct {
	Fingerprint string `json:"fingerprint"`
	Response    any    `json:"response"`
}

type storedIdemRecord struct {
	Fingerprint string          `json:"fingerprint"`
	Response    json.RawMessage `json:"response"`
}

// seatsFingerprint identifies a seat selection regardless of order.
func seatsFingerprint(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	h := sha256.New()
	for _, id := range sorted {
		h.Write(strconv.AppendInt(nil, id, 10))
		h.Write([]byte{','})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// replay answers with the stored response, or 422 when the key was first used
// for a different seat selection.
func replay(c *gin.Context, idemKey, fingerprint, payload string) {
	var rec storedIdemRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		respondErr(c, fmt.Errorf("httpgin.replay:%w", err))
		return
	}

	if rec.Fingerprint != fingerprint {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "idempotency key reused with a different request"})
		return
	}

	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", rec.Response)
}

// @Summary  Bookings of the caller
// @Security BearerAuth
// @Success  200 {array} UserBookingResponse
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)

		out, err := svcs.Query.BookingsByUser(c.Request.Context(), p.UserID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toUserBookings(out))
	}
}

// @Summary  Ticket of a confirmed booking
// @Security BearerAuth
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} TicketResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "booking not confirmed"
// @Router   /bookings/{id}/ticket [get]
func handleTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)

		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid booking id")
			return
		}

		t, err := svcs.Query.Ticket(c.Request.Context(), id, p.UserID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, TicketResponse{
			BookingID:   t.BookingID.String(),
			MovieID:     t.MovieID,
			TheatreName: t.TheatreName,
			ScreenName:  t.ScreenName,
			Seats:       t.Seats,
			StartsAt:    t.StartsAt,
		})
	}
}

// @Summary  Create a payment order for a held booking
// @Security BearerAuth
// @Param    req body  CreateOrderRequest true "payload"
// @Success  201 {object} OrderResponse
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "payment already initiated"
// @Failure  410 {object} ErrorResponse "hold expired"
// @Failure  502 {object} ErrorResponse "gateway failure, retry"
// @Router   /payments/orders [post]
func handleCreateOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequest(c, "invalid booking_id")
			return
		}

		h, err := svcs.Settlement.CreateOrder(c.Request.Context(), id, p.UserID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, OrderResponse{
			BookingID: h.BookingID.String(),
			OrderID:   h.ExternalOrderRef,
			Amount:    h.Amount,
			Currency:  h.Currency,
		})
	}
}

// @Summary  Razorpay webhook
// @Param    X-Razorpay-Signature header string true "hex HMAC-SHA256 of the body"
// @Success  200
// @Failure  401 {object} ErrorResponse
// @Router   /webhooks/razorpay [post]
func handleRazorpayWebhook(svcs *service.Services, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		body, err := c.GetRawData()
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}

		sig := c.GetHeader("X-Razorpay-Signature")
		if err := svcs.Settlement.HandleWebhook(c.Request.Context(), body, sig); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusOK)
	}
}

// @Summary  Create screen
// @Security BearerAuth
// @Param    req body  CreateScreenRequest true "payload"
// @Success  201 {object} CreateScreenResponse
// @Router   /admin/screens [post]
func handleCreateScreen(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)

		var req CreateScreenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := svcs.Catalog.CreateScreen(c.Request.Context(), p, domain.Screen{
			TheatreName: req.TheatreName,
			Name:        req.Name,
			OwnerID:     req.OwnerID,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, CreateScreenResponse{ScreenID: id})
	}
}

// @Summary  Batch create seats
// @Security BearerAuth
// @Param    id  path  int  true  "Screen ID"
// @Param    req body  BatchCreateSeatsRequest true "payload"
// @Success  201 {object} BatchCreateSeatsResponse
// @Router   /admin/screens/{id}/seats [post]
func handleBatchCreateSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)

		screenID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req BatchCreateSeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		specs := make([]catalog.SeatSpec, 0, len(req.Seats))
		for _, s := range req.Seats {
			specs = append(specs, catalog.SeatSpec{
				Row:    s.Row,
				Number: s.Number,
				Type:   domain.SeatType(s.Type),
			})
		}

		n, err := svcs.Catalog.BatchCreateSeats(c.Request.Context(), p, screenID, specs)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, BatchCreateSeatsResponse{Created: n})
	}
}

// @Summary  Schedule a show
// @Security BearerAuth
// @Param    req body  CreateShowRequest true "payload"
// @Success  201 {object} CreateShowResponse
// @Failure  409 {object} ErrorResponse "overlaps another show"
// @Router   /admin/shows [post]
func handleCreateShow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal(c)

		var req CreateShowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := svcs.Catalog.CreateShow(c.Request.Context(), p, req.ScreenID, req.MovieID, req.StartsAt, req.EndsAt)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, CreateShowResponse{ShowID: id})
	}
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

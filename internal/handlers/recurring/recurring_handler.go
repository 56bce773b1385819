package recurring

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/handlers/httperror"
	recurringsvc "github.com/iyilikvakfi/donation-service/internal/services/recurring"
)

// Handler serves recurring donation subscriptions
type Handler struct {
	recurring *recurringsvc.Service
	logger    ports.Logger
}

// NewHandler creates a new recurring donation handler
func NewHandler(recurring *recurringsvc.Service, logger ports.Logger) *Handler {
	return &Handler{recurring: recurring, logger: logger}
}

// RegisterRoutes mounts the recurring donation endpoints on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/due", h.ListDue)
	r.GET("/statistics", h.Statistics)
	r.GET("/:id", h.GetByID)
	r.PUT("/:id", h.Update)
	r.POST("/:id/pause", h.Pause)
	r.POST("/:id/resume", h.Resume)
	r.POST("/:id/cancel", h.Cancel)
	r.POST("/:id/payment-success", h.PaymentSuccess)
	r.POST("/:id/payment-failure", h.PaymentFailure)
}

// CreateRequest is the body for POST /recurring-donations
type CreateRequest struct {
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	Currency             string          `json:"currency"`
	Frequency            string          `json:"frequency"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentGateway       string          `json:"payment_gateway"`
	CardToken            *string         `json:"card_token"`
	CardMask             *string         `json:"card_mask"`
	CardBrand            *string         `json:"card_brand"`
	TotalPaymentsPlanned *int            `json:"total_payments_planned"`
	DonorID              int64           `json:"donor_id" binding:"required"`
	CampaignID           *int64          `json:"campaign_id"`
}

// Create handles POST /recurring-donations
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	rec, err := h.recurring.Create(c.Request.Context(), recurringsvc.CreateInput{
		Amount:               req.Amount,
		Currency:             req.Currency,
		Frequency:            domain.Frequency(req.Frequency),
		PaymentMethod:        domain.PaymentMethod(req.PaymentMethod),
		PaymentGateway:       req.PaymentGateway,
		CardToken:            req.CardToken,
		CardMask:             req.CardMask,
		CardBrand:            req.CardBrand,
		TotalPaymentsPlanned: req.TotalPaymentsPlanned,
		DonorID:              req.DonorID,
		CampaignID:           req.CampaignID,
	})
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "recurring_donation": rec})
}

// GetByID handles GET /recurring-donations/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz abonelik kimliği")
		return
	}

	rec, err := h.recurring.GetByID(c.Request.Context(), id)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// List handles GET /recurring-donations
func (h *Handler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		httperror.BadRequest(c, err.Error())
		return
	}

	recs, total, err := h.recurring.List(c.Request.Context(), filter)
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recurring_donations": recs,
		"total":               total,
		"limit":               filter.Limit,
		"offset":              filter.Offset,
	})
}

// UpdateRequest is the body for PUT /recurring-donations/:id
type UpdateRequest struct {
	Amount               *decimal.Decimal `json:"amount"`
	Currency             *string          `json:"currency"`
	Frequency            *string          `json:"frequency"`
	CardToken            *string          `json:"card_token"`
	CardMask             *string          `json:"card_mask"`
	CardBrand            *string          `json:"card_brand"`
	TotalPaymentsPlanned *int             `json:"total_payments_planned"`
}

// Update handles PUT /recurring-donations/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz abonelik kimliği")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	input := recurringsvc.UpdateInput{
		Amount:               req.Amount,
		Currency:             req.Currency,
		CardToken:            req.CardToken,
		CardMask:             req.CardMask,
		CardBrand:            req.CardBrand,
		TotalPaymentsPlanned: req.TotalPaymentsPlanned,
	}
	if req.Frequency != nil {
		f := domain.Frequency(*req.Frequency)
		input.Frequency = &f
	}

	rec, err := h.recurring.Update(c.Request.Context(), id, input)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recurring_donation": rec})
}

// Pause handles POST /recurring-donations/:id/pause
func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, h.recurring.Pause)
}

// Resume handles POST /recurring-donations/:id/resume
func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, h.recurring.Resume)
}

// CancelRequest is the body for POST /recurring-donations/:id/cancel
type CancelRequest struct {
	Reason *string `json:"reason"`
}

// Cancel handles POST /recurring-donations/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz abonelik kimliği")
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
			return
		}
	}

	rec, err := h.recurring.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recurring_donation": rec})
}

// PaymentSuccessRequest is the body for POST /recurring-donations/:id/payment-success
type PaymentSuccessRequest struct {
	GatewayTransactionID *string         `json:"gateway_transaction_id"`
	GatewayResponse      json.RawMessage `json:"gateway_response"`
	ConversationID       *string         `json:"conversation_id"`
}

// PaymentSuccess handles POST /recurring-donations/:id/payment-success. The
// manual endpoint opens its own ledger row; the gateway callback path already
// has one.
func (h *Handler) PaymentSuccess(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz abonelik kimliği")
		return
	}

	var req PaymentSuccessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
			return
		}
	}

	rec, err := h.recurring.ProcessPaymentSuccess(c.Request.Context(), id, recurringsvc.PaymentData{
		GatewayTransactionID: req.GatewayTransactionID,
		GatewayResponse:      req.GatewayResponse,
		ConversationID:       req.ConversationID,
		CreateTransaction:    true,
	})
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recurring_donation": rec})
}

// PaymentFailureRequest is the body for POST /recurring-donations/:id/payment-failure
type PaymentFailureRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PaymentFailure handles POST /recurring-donations/:id/payment-failure
func (h *Handler) PaymentFailure(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz abonelik kimliği")
		return
	}

	var req PaymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	rec, err := h.recurring.ProcessPaymentFailure(c.Request.Context(), id, req.Reason)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recurring_donation": rec})
}

// ListDue handles GET /recurring-donations/due
func (h *Handler) ListDue(c *gin.Context) {
	var limit int32
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			httperror.BadRequest(c, "Geçersiz limit")
			return
		}
		limit = int32(n)
	}

	recs, err := h.recurring.GetDue(c.Request.Context(), limit)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recurring_donations": recs, "count": len(recs)})
}

// Statistics handles GET /recurring-donations/statistics
func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.recurring.GetStatistics(c.Request.Context())
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz abonelik kimliği")
		return
	}

	rec, err := fn(c.Request.Context(), id)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recurring_donation": rec})
}

func parseFilter(c *gin.Context) (ports.RecurringFilter, error) {
	var filter ports.RecurringFilter

	if v := c.Query("status"); v != "" {
		status := domain.RecurringStatus(v)
		filter.Status = &status
	}
	if v := c.Query("frequency"); v != "" {
		freq := domain.Frequency(v)
		filter.Frequency = &freq
	}
	if v := c.Query("donor_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Geçersiz donor_id")
		}
		filter.DonorID = &n
	}
	if v := c.Query("campaign_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Geçersiz campaign_id")
		}
		filter.CampaignID = &n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			return filter, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Geçersiz limit")
		}
		filter.Limit = int32(n)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return filter, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Geçersiz offset")
		}
		filter.Offset = int32(n)
	}
	return filter, nil
}

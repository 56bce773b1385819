package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/handlers/httperror"
	"github.com/iyilikvakfi/donation-service/internal/middleware"
	ledgersvc "github.com/iyilikvakfi/donation-service/internal/services/ledger"
)

// Handler serves the payment transaction ledger
type Handler struct {
	ledger *ledgersvc.Service
	logger ports.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(ledger *ledgersvc.Service, logger ports.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// RegisterRoutes mounts the ledger endpoints on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/statistics", h.Statistics)
	r.GET("/statistics/by-gateway", h.StatisticsByGateway)
	r.POST("/callback", h.Callback)
	r.GET("/:id", h.GetByID)
	r.POST("/:id/mark-success", h.MarkSuccess)
	r.POST("/:id/mark-failed", h.MarkFailed)
	r.POST("/:id/retry", h.Retry)
}

// CreateRequest is the body for POST /payment-transactions
type CreateRequest struct {
	Amount              decimal.Decimal `json:"amount" binding:"required"`
	Currency            string          `json:"currency"`
	PaymentGateway      string          `json:"payment_gateway" binding:"required"`
	ConversationID      *string         `json:"conversation_id"`
	DonationID          *string         `json:"donation_id"`
	RecurringDonationID *string         `json:"recurring_donation_id"`
	ThreeDSecure        bool            `json:"three_d_secure"`
}

// Create handles POST /payment-transactions
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	txn, err := h.ledger.Create(c.Request.Context(), ledgersvc.CreateInput{
		Amount:              req.Amount,
		Currency:            req.Currency,
		PaymentGateway:      req.PaymentGateway,
		ConversationID:      req.ConversationID,
		DonationID:          req.DonationID,
		RecurringDonationID: req.RecurringDonationID,
		ThreeDSecure:        req.ThreeDSecure,
	})
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": txn})
}

// GetByID handles GET /payment-transactions/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz işlem kimliği")
		return
	}

	txn, err := h.ledger.GetByID(c.Request.Context(), id)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// List handles GET /payment-transactions
func (h *Handler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		httperror.BadRequest(c, err.Error())
		return
	}

	txns, total, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"total":        total,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// MarkSuccessRequest is the body for POST /payment-transactions/:id/mark-success
type MarkSuccessRequest struct {
	GatewayTransactionID *string         `json:"gateway_transaction_id"`
	GatewayResponse      json.RawMessage `json:"gateway_response"`
}

// MarkSuccess handles POST /payment-transactions/:id/mark-success
func (h *Handler) MarkSuccess(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz işlem kimliği")
		return
	}

	var req MarkSuccessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
			return
		}
	}

	txn, err := h.ledger.MarkSuccess(c.Request.Context(), id, req.GatewayTransactionID, req.GatewayResponse)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": txn})
}

// MarkFailedRequest is the body for POST /payment-transactions/:id/mark-failed
type MarkFailedRequest struct {
	ErrorCode       *string         `json:"error_code"`
	ErrorMessage    *string         `json:"error_message"`
	GatewayResponse json.RawMessage `json:"gateway_response"`
	Retryable       bool            `json:"retryable"`
}

// MarkFailed handles POST /payment-transactions/:id/mark-failed
func (h *Handler) MarkFailed(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz işlem kimliği")
		return
	}

	var req MarkFailedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
			return
		}
	}

	txn, err := h.ledger.MarkFailed(c.Request.Context(), id, req.ErrorCode, req.ErrorMessage, req.GatewayResponse, req.Retryable)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": txn})
}

// Retry handles POST /payment-transactions/:id/retry
func (h *Handler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz işlem kimliği")
		return
	}

	txn, err := h.ledger.Retry(c.Request.Context(), id)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": txn})
}

// CallbackRequest is the body the gateway posts back after a 3D Secure or
// asynchronous payment resolves
type CallbackRequest struct {
	TransactionID        string          `json:"transaction_id" binding:"required"`
	Success              bool            `json:"success"`
	GatewayTransactionID *string         `json:"gateway_transaction_id"`
	ErrorCode            *string         `json:"error_code"`
	ErrorMessage         *string         `json:"error_message"`
	GatewayResponse      json.RawMessage `json:"gateway_response"`
	Retryable            bool            `json:"retryable"`
}

// Callback handles POST /payment-transactions/callback
func (h *Handler) Callback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	txnID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		httperror.BadRequest(c, "Geçersiz işlem kimliği")
		return
	}

	cb := ledgersvc.Callback{
		TransactionID:        txnID,
		Success:              req.Success,
		GatewayTransactionID: req.GatewayTransactionID,
		ErrorCode:            req.ErrorCode,
		ErrorMessage:         req.ErrorMessage,
		Response:             req.GatewayResponse,
		Retryable:            req.Retryable,
	}
	if sessionID := middleware.SessionID(c); sessionID != "" {
		cb.SessionID = &sessionID
	}

	txn, err := h.ledger.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": txn})
}

// Statistics handles GET /payment-transactions/statistics
func (h *Handler) Statistics(c *gin.Context) {
	var start, end *time.Time
	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httperror.BadRequest(c, "start RFC3339 biçiminde olmalı")
			return
		}
		start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httperror.BadRequest(c, "end RFC3339 biçiminde olmalı")
			return
		}
		end = &t
	}

	stats, err := h.ledger.GetStatistics(c.Request.Context(), start, end)
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StatisticsByGateway handles GET /payment-transactions/statistics/by-gateway
func (h *Handler) StatisticsByGateway(c *gin.Context) {
	stats, err := h.ledger.GetStatisticsByGateway(c.Request.Context())
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gateways": stats})
}

func parseFilter(c *gin.Context) (ports.TransactionFilter, error) {
	var filter ports.TransactionFilter

	if v := c.Query("status"); v != "" {
		status := domain.TransactionStatus(v)
		filter.Status = &status
	}
	if v := c.Query("gateway"); v != "" {
		filter.PaymentGateway = &v
	}
	if v := c.Query("donation_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Geçersiz donation_id")
		}
		filter.DonationID = &id
	}
	if v := c.Query("recurring_donation_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, domain.NewDomainError(domain.ErrorCodeValidationFailed, "Geçersiz recurring_donation_id")
		}
		filter.RecurringDonationID = &id
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

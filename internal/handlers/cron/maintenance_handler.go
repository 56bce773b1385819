package cron

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/handlers/httperror"
	cartsvc "github.com/iyilikvakfi/donation-service/internal/services/cart"
	ledgersvc "github.com/iyilikvakfi/donation-service/internal/services/ledger"
	recurringsvc "github.com/iyilikvakfi/donation-service/internal/services/recurring"
	"github.com/iyilikvakfi/donation-service/pkg/observability"
)

// Handler serves the scheduler-facing maintenance endpoints. Every route is
// authenticated with the shared cron secret.
type Handler struct {
	carts           *cartsvc.Service
	charger         *recurringsvc.Charger
	ledger          *ledgersvc.Service
	metrics         *observability.Metrics
	logger          ports.Logger
	secret          string
	chargeBatchSize int
	stalePendingAge time.Duration
}

// NewHandler creates a new cron handler
func NewHandler(
	carts *cartsvc.Service,
	charger *recurringsvc.Charger,
	ledger *ledgersvc.Service,
	metrics *observability.Metrics,
	logger ports.Logger,
	secret string,
	chargeBatchSize int,
	stalePendingAge time.Duration,
) *Handler {
	return &Handler{
		carts:           carts,
		charger:         charger,
		ledger:          ledger,
		metrics:         metrics,
		logger:          logger,
		secret:          secret,
		chargeBatchSize: chargeBatchSize,
		stalePendingAge: stalePendingAge,
	}
}

// RegisterRoutes mounts the cron endpoints on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.Use(h.authenticate)
	r.POST("/sweep-carts", h.SweepCarts)
	r.POST("/process-due", h.ProcessDue)
	r.GET("/stale-pending", h.StalePending)
}

// authenticate verifies the shared secret from the scheduler
func (h *Handler) authenticate(c *gin.Context) {
	if h.secret == "" {
		h.logger.Warn("cron secret is not configured, rejecting request")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	if c.GetHeader("X-Cron-Secret") == h.secret {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") == "Bearer "+h.secret {
		c.Next()
		return
	}
	h.logger.Warn("unauthorized cron request", ports.String("remote_addr", c.ClientIP()))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
}

// SweepCarts handles POST /cron/sweep-carts
func (h *Handler) SweepCarts(c *gin.Context) {
	removed, err := h.carts.SweepExpired(c.Request.Context())
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartSweeps.Inc()
		h.metrics.CartItemsSwept.Add(float64(removed))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"removed":      removed,
		"processed_at": time.Now().Format(time.RFC3339),
	})
}

// ProcessDueRequest is the body for POST /cron/process-due
type ProcessDueRequest struct {
	AsOfDate  *string `json:"as_of_date"`
	BatchSize *int    `json:"batch_size"`
}

// ProcessDueResponse summarizes one charge batch
type ProcessDueResponse struct {
	Success     bool     `json:"success"`
	Processed   int      `json:"processed"`
	Charged     int      `json:"charged"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
	ProcessedAt string   `json:"processed_at"`
}

// ProcessDue handles POST /cron/process-due. The scheduler calls this daily;
// overlapping runs are safe because claimed rows are skipped.
func (h *Handler) ProcessDue(c *gin.Context) {
	var req ProcessDueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("failed to parse process-due body, using defaults", ports.Err(err))
		}
	}

	asOf := time.Now()
	if req.AsOfDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.AsOfDate)
		if err != nil {
			httperror.BadRequest(c, "as_of_date YYYY-MM-DD biçiminde olmalı")
			return
		}
		asOf = parsed
	}

	batchSize := h.chargeBatchSize
	if req.BatchSize != nil {
		if *req.BatchSize < 1 || *req.BatchSize > 1000 {
			httperror.BadRequest(c, "batch_size 1 ile 1000 arasında olmalı")
			return
		}
		batchSize = *req.BatchSize
	}

	result, err := h.charger.ProcessDueCharges(c.Request.Context(), asOf, batchSize)
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecurringCharges.WithLabelValues("success").Add(float64(result.Success))
		h.metrics.RecurringCharges.WithLabelValues("failed").Add(float64(result.Failed))
		h.metrics.RecurringCharges.WithLabelValues("skipped").Add(float64(result.Skipped))
	}

	resp := ProcessDueResponse{
		Success:     result.Failed == 0,
		Processed:   result.Processed,
		Charged:     result.Success,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
		ProcessedAt: time.Now().Format(time.RFC3339),
	}
	for _, batchErr := range result.Errors {
		resp.Errors = append(resp.Errors, batchErr.RecurringID+": "+batchErr.Error)
	}

	h.logger.Info("due charge batch completed",
		ports.Int("processed", result.Processed),
		ports.Int("charged", result.Success),
		ports.Int("failed", result.Failed),
		ports.Int("skipped", result.Skipped),
	)

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusPartialContent
	}
	c.JSON(status, resp)
}

// StalePending handles GET /cron/stale-pending, listing attempts the gateway
// never answered so operators can reconcile them.
func (h *Handler) StalePending(c *gin.Context) {
	olderThan := h.stalePendingAge
	if v := c.Query("older_than_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httperror.BadRequest(c, "Geçersiz older_than_minutes")
			return
		}
		olderThan = time.Duration(n) * time.Minute
	}

	var limit int32
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			httperror.BadRequest(c, "Geçersiz limit")
			return
		}
		limit = int32(n)
	}

	txns, err := h.ledger.ListStalePending(c.Request.Context(), olderThan, limit)
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"count":        len(txns),
		"older_than":   olderThan.String(),
	})
}

package cart

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/internal/handlers/httperror"
	"github.com/iyilikvakfi/donation-service/internal/middleware"
	cartsvc "github.com/iyilikvakfi/donation-service/internal/services/cart"
	"github.com/iyilikvakfi/donation-service/internal/services/checkout"
)

// Handler serves the session cart and the checkout flow
type Handler struct {
	carts    *cartsvc.Service
	checkout *checkout.Service
	logger   ports.Logger
}

// NewHandler creates a new cart handler
func NewHandler(carts *cartsvc.Service, checkoutSvc *checkout.Service, logger ports.Logger) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkoutSvc,
		logger:   logger,
	}
}

// RegisterRoutes mounts the cart endpoints on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.GetCart)
	r.POST("", h.AddItem)
	r.DELETE("", h.ClearCart)
	r.GET("/validate", h.ValidateCart)
	r.POST("/items", h.AddItem)
	r.PUT("/items/:id", h.UpdateItem)
	r.DELETE("/items/:id", h.RemoveItem)
	r.POST("/checkout", h.Checkout)
	r.POST("/complete-checkout", h.CompleteCheckout)
}

// AddItemRequest is the body for POST /cart/items
type AddItemRequest struct {
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	Currency     string          `json:"currency"`
	DonationType string          `json:"donation_type"`
	RepeatCount  int             `json:"repeat_count"`
	CampaignID   *int64          `json:"campaign_id"`
	DonorName    *string         `json:"donor_name"`
	DonorEmail   *string         `json:"donor_email"`
	DonorPhone   *string         `json:"donor_phone"`
}

// AddItem handles POST /cart/items
func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	item, err := h.carts.AddItem(c.Request.Context(), middleware.SessionID(c), cartsvc.AddItemInput{
		Amount:       req.Amount,
		Currency:     req.Currency,
		DonationType: domain.DonationType(req.DonationType),
		RepeatCount:  req.RepeatCount,
		CampaignID:   req.CampaignID,
		DonorName:    req.DonorName,
		DonorEmail:   req.DonorEmail,
		DonorPhone:   req.DonorPhone,
	})
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "item": item})
}

// GetCart handles GET /cart
func (h *Handler) GetCart(c *gin.Context) {
	summary, err := h.carts.GetCart(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UpdateItemRequest is the body for PUT /cart/items/:id
type UpdateItemRequest struct {
	Amount       *decimal.Decimal `json:"amount"`
	Currency     *string          `json:"currency"`
	DonationType *string          `json:"donation_type"`
	RepeatCount  *int             `json:"repeat_count"`
	DonorName    *string          `json:"donor_name"`
	DonorEmail   *string          `json:"donor_email"`
	DonorPhone   *string          `json:"donor_phone"`
}

// UpdateItem handles PUT /cart/items/:id
func (h *Handler) UpdateItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz öğe kimliği")
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
		return
	}

	input := cartsvc.UpdateItemInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		RepeatCount: req.RepeatCount,
		DonorName:   req.DonorName,
		DonorEmail:  req.DonorEmail,
		DonorPhone:  req.DonorPhone,
	}
	if req.DonationType != nil {
		dt := domain.DonationType(*req.DonationType)
		input.DonationType = &dt
	}

	item, err := h.carts.UpdateItem(c.Request.Context(), id, input)
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

// RemoveItem handles DELETE /cart/items/:id
func (h *Handler) RemoveItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperror.BadRequest(c, "Geçersiz öğe kimliği")
		return
	}

	if err := h.carts.RemoveItem(c.Request.Context(), id); err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ClearCart handles DELETE /cart
func (h *Handler) ClearCart(c *gin.Context) {
	removed, err := h.carts.Clear(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

// ValidateCart handles GET /cart/validate
func (h *Handler) ValidateCart(c *gin.Context) {
	validation, err := h.carts.Validate(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, validation)
}

// CheckoutRequest is the body for POST /cart/checkout
type CheckoutRequest struct {
	PaymentMethod  string  `json:"payment_method"`
	PaymentGateway string  `json:"payment_gateway"`
	ConversationID *string `json:"conversation_id"`
	ThreeDSecure   bool    `json:"three_d_secure"`
	DonorName      *string `json:"donor_name"`
	DonorEmail     *string `json:"donor_email"`
	DonorPhone     *string `json:"donor_phone"`
	IsAnonymous    bool    `json:"is_anonymous"`
}

// Checkout handles POST /cart/checkout. The cart stays intact until the
// gateway confirms the payment.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperror.BadRequest(c, "Geçersiz istek: "+err.Error())
			return
		}
	}

	result, err := h.checkout.Checkout(c.Request.Context(), middleware.SessionID(c), checkout.PaymentInfo{
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		PaymentGateway: req.PaymentGateway,
		ConversationID: req.ConversationID,
		ThreeDSecure:   req.ThreeDSecure,
		DonorName:      req.DonorName,
		DonorEmail:     req.DonorEmail,
		DonorPhone:     req.DonorPhone,
		IsAnonymous:    req.IsAnonymous,
	})
	if err != nil {
		httperror.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "checkout": result})
}

// CompleteCheckout handles POST /cart/complete-checkout
func (h *Handler) CompleteCheckout(c *gin.Context) {
	removed, err := h.checkout.CompleteCheckout(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		httperror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cartpay/cartpay/internal/api/dto"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/service"
)

type CartPaymentHandler struct {
	processor service.CartPaymentProcessor
	log       *logger.Logger
}

func NewCartPaymentHandler(processor service.CartPaymentProcessor, log *logger.Logger) *CartPaymentHandler {
	return &CartPaymentHandler{processor: processor, log: log}
}

// @Summary Create a new cart payment
// @Description Create a cart payment and submit it to the payment provider
// @Tags CartPayments
// @Accept json
// @Produce json
// @Param cart_payment body dto.CreateCartPaymentRequest true "Cart payment"
// @Success 201 {object} dto.CartPaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cart_payments [post]
func (h *CartPaymentHandler) CreateCartPayment(c *gin.Context) {
	var req dto.CreateCartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.processor.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to create cart payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a cart payment by ID
// @Description Get a cart payment with its payment intents
// @Tags CartPayments
// @Produce json
// @Param id path string true "Cart payment ID"
// @Success 200 {object} dto.CartPaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cart_payments/{id} [get]
func (h *CartPaymentHandler) GetCartPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Cart payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.processor.GetCartPayment(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get cart payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Adjust a cart payment
// @Description Adjust the cart payment to a new total amount
// @Tags CartPayments
// @Accept json
// @Produce json
// @Param id path string true "Cart payment ID"
// @Param adjustment body dto.UpdateCartPaymentRequest true "Adjustment"
// @Success 200 {object} dto.CartPaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cart_payments/{id}/adjust [post]
func (h *CartPaymentHandler) UpdateCartPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Cart payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.UpdateCartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.processor.UpdatePayment(c.Request.Context(), id, &req)
	if err != nil {
		h.log.Error("Failed to update cart payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a cart payment
// @Description Cancel every live intent under the cart payment
// @Tags CartPayments
// @Produce json
// @Param id path string true "Cart payment ID"
// @Success 200 {object} dto.CartPaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cart_payments/{id}/cancel [post]
func (h *CartPaymentHandler) CancelCartPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Cart payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.processor.CancelPayment(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to cancel cart payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Create a cart payment via the legacy flow
// @Description Create a cart payment addressed by consumer and card ids
// @Tags LegacyCharges
// @Accept json
// @Produce json
// @Param cart_payment body dto.LegacyCreateCartPaymentRequest true "Legacy cart payment"
// @Success 201 {object} dto.CartPaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /legacy/cart_payments [post]
func (h *CartPaymentHandler) LegacyCreateCartPayment(c *gin.Context) {
	var req dto.LegacyCreateCartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.processor.LegacyCreatePayment(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to create legacy cart payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Adjust a cart payment by legacy charge id
// @Description Apply an amount delta to the cart payment behind a legacy consumer charge
// @Tags LegacyCharges
// @Accept json
// @Produce json
// @Param charge_id path int true "Legacy consumer charge ID"
// @Param adjustment body dto.UpdateLegacyChargeRequest true "Adjustment"
// @Success 200 {object} dto.CartPaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /legacy/charges/{charge_id}/adjust [post]
func (h *CartPaymentHandler) UpdateLegacyCharge(c *gin.Context) {
	chargeID, err := h.chargeIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.UpdateLegacyChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.processor.UpdatePaymentForLegacyCharge(c.Request.Context(), chargeID, &req)
	if err != nil {
		h.log.Error("Failed to update legacy charge", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a cart payment by legacy charge id
// @Description Cancel the cart payment behind a legacy consumer charge
// @Tags LegacyCharges
// @Produce json
// @Param charge_id path int true "Legacy consumer charge ID"
// @Success 200 {object} dto.CartPaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /legacy/charges/{charge_id}/cancel [post]
func (h *CartPaymentHandler) CancelLegacyCharge(c *gin.Context) {
	chargeID, err := h.chargeIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.processor.CancelPaymentForLegacyCharge(c.Request.Context(), chargeID)
	if err != nil {
		h.log.Error("Failed to cancel legacy charge", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CartPaymentHandler) chargeIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("charge_id")
	chargeID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Charge ID must be a number").
			Mark(ierr.ErrValidation)
	}
	return chargeID, nil
}

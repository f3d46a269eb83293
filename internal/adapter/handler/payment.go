package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/service"
)

type PaymentHandler struct {
	Service *service.PaymentService
}

type CreatePaymentRequest struct {
	OrderID           string          `json:"order_id"`
	UserID            string          `json:"user_id"`
	MerchantID        string          `json:"merchant_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentMethod     string          `json:"payment_method"`
	Description       string          `json:"description"`
	Metadata          string          `json:"metadata"`
	ExpirationMinutes int             `json:"expiration_minutes"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

type PaymentResponse struct {
	ID                    uuid.UUID       `json:"id"`
	OrderID               string          `json:"order_id"`
	UserID                string          `json:"user_id"`
	MerchantID            string          `json:"merchant_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	PaymentMethod         string          `json:"payment_method"`
	Status                string          `json:"status"`
	Description           string          `json:"description,omitempty"`
	ExternalTransactionID string          `json:"external_transaction_id,omitempty"`
	ErrorCode             string          `json:"error_code,omitempty"`
	ErrorMessage          string          `json:"error_message,omitempty"`
	RefundedAmount        decimal.Decimal `json:"refunded_amount"`
	RefundableAmount      decimal.Decimal `json:"refundable_amount"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	ExpiresAt             time.Time       `json:"expires_at"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                    p.ID,
		OrderID:               p.OrderID,
		UserID:                p.UserID,
		MerchantID:            p.MerchantID,
		Amount:                p.Amount,
		Currency:              string(p.Currency),
		PaymentMethod:         string(p.PaymentMethod),
		Status:                string(p.Status),
		Description:           p.Description,
		ExternalTransactionID: p.ExternalTransactionID,
		ErrorCode:             p.ErrorCode,
		ErrorMessage:          p.ErrorMessage,
		RefundedAmount:        p.RefundedAmount,
		RefundableAmount:      p.RefundableAmount(),
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		CompletedAt:           p.CompletedAt,
		ExpiresAt:             p.ExpiresAt,
	}
}

// CreatePayment handles POST /payments. The Idempotency-Key header is
// required: retries with the same key return the original payment.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	key := c.Get("Idempotency-Key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Idempotency-Key header is required"})
	}

	var req CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	payment, err := h.Service.Create(c.Context(), key, service.CreatePaymentSpec{
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		MerchantID:    req.MerchantID,
		Amount:        req.Amount,
		Currency:      domain.Currency(req.Currency),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Description:   req.Description,
		Metadata:      req.Metadata,
		TTLMinutes:    req.ExpirationMinutes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPaymentResponse(payment))
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payment id"})
	}
	payment, err := h.Service.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPaymentResponse(payment))
}

func (h *PaymentHandler) GetPaymentByOrder(c *fiber.Ctx) error {
	payment, err := h.Service.GetByOrderID(c.Context(), c.Params("orderId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPaymentResponse(payment))
}

func (h *PaymentHandler) GetUserPayments(c *fiber.Ctx) error {
	page, err := h.Service.ListByUser(c.Context(), c.Params("userId"),
		c.QueryInt("page", 1), c.QueryInt("size", 20))
	if err != nil {
		return respondError(c, err)
	}
	items := make([]PaymentResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, toPaymentResponse(p))
	}
	return c.JSON(fiber.Map{
		"items": items,
		"total": page.Total,
		"page":  page.Page,
		"size":  page.Size,
	})
}

func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payment id"})
	}
	payment, err := h.Service.Confirm(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPaymentResponse(payment))
}

func (h *PaymentHandler) CancelPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payment id"})
	}
	payment, err := h.Service.Cancel(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPaymentResponse(payment))
}

func (h *PaymentHandler) RefundPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payment id"})
	}
	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	payment, err := h.Service.Refund(c.Context(), id, req.Amount, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPaymentResponse(payment))
}

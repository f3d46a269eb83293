package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/saga"
	"github.com/NiMv1/payment-service/internal/core/service"
)

type WalletHandler struct {
	Service *service.WalletService
	Saga    *saga.TransferSaga
}

type OpenWalletRequest struct {
	UserID         string          `json:"user_id"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type WalletOperationRequest struct {
	UserID   string          `json:"user_id"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	FromUserID  string          `json:"from_user_id"`
	ToUserID    string          `json:"to_user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

type WalletResponse struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	BlockedAmount    decimal.Decimal `json:"blocked_amount"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:               w.ID,
		UserID:           w.UserID,
		Currency:         string(w.Currency),
		Balance:          w.Balance,
		BlockedAmount:    w.BlockedAmount,
		AvailableBalance: w.Available(),
		Active:           w.Active,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

func (h *WalletHandler) OpenWallet(c *fiber.Ctx) error {
	var req OpenWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}
	wallet, err := h.Service.Open(c.Context(), req.UserID, domain.Currency(req.Currency), req.InitialBalance)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toWalletResponse(wallet))
}

func (h *WalletHandler) GetUserWallets(c *fiber.Ctx) error {
	wallets, err := h.Service.ListByUser(c.Context(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	result := make([]WalletResponse, 0, len(wallets))
	for _, w := range wallets {
		result = append(result, toWalletResponse(w))
	}
	return c.JSON(result)
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	wallet, err := h.Service.Get(c.Context(), c.Params("userId"), domain.Currency(c.Params("currency")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toWalletResponse(wallet))
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	var req WalletOperationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	wallet, err := h.Service.Deposit(c.Context(), req.UserID, domain.Currency(req.Currency), req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toWalletResponse(wallet))
}

func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	var req WalletOperationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	wallet, err := h.Service.Withdraw(c.Context(), req.UserID, domain.Currency(req.Currency), req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toWalletResponse(wallet))
}

// Transfer runs the compensating saga between two wallets.
func (h *WalletHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	result, err := h.Saga.Execute(c.Context(), saga.TransferRequest{
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Amount:      req.Amount,
		Currency:    domain.Currency(req.Currency),
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"transfer_id":  result.TransferID,
		"from_user_id": result.FromUserID,
		"to_user_id":   result.ToUserID,
		"amount":       result.Amount,
		"currency":     result.Currency,
		"status":       result.Status,
		"description":  result.Description,
		"created_at":   result.CreatedAt,
	})
}

package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
	"github.com/ronalsilva/waller-microservice/internal/ledger"
)

const (
	codeWalletNotFound    = "WALLET_NOT_FOUND"
	codeDuplicateWallet   = "WALLET_ALREADY_EXISTS"
	codeInsufficientFunds = "INSUFFICIENT_FUNDS"
	codeSelfTransfer      = "SELF_TRANSFER"
	codeInvalidAmount     = "INVALID_AMOUNT"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Balance *decimal.Decimal `json:"balance"`
}

type depositRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	Amount     *decimal.Decimal `json:"amount"`
	ReceiverID string           `json:"receiver_id"`
}

type walletResponse struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Balance   json.Number `json:"balance"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type balanceResponse struct {
	Balance   json.Number `json:"balance"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type transactionResponse struct {
	ID               string      `json:"id"`
	WalletID         string      `json:"wallet_id"`
	Type             string      `json:"type"`
	Amount           json.Number `json:"amount"`
	SenderWalletID   string      `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID string      `json:"receiver_wallet_id,omitempty"`
	Description      string      `json:"description"`
	CreatedBy        string      `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Create opens a wallet for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req createRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	initial := decimal.Zero
	if req.Balance != nil {
		initial = *req.Balance
	}
	w, err := h.service.Create(c.UserContext(), uid, initial)
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Deposit credits the authenticated user's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req depositRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	w, err := h.service.Deposit(c.UserContext(), uid, amount)
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Transfer moves funds from the authenticated user to receiver_id.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Amount == nil || req.ReceiverID == "" {
		return fiber.NewError(http.StatusBadRequest, "amount and receiver_id are required")
	}
	sent, err := h.service.Transfer(c.UserContext(), uid, *req.Amount, req.ReceiverID)
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(sent))
}

// Transactions lists the rows filed under the authenticated user's wallet.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	w, err := h.service.WalletFor(c.UserContext(), uid)
	if err != nil {
		return toAPIError(err)
	}
	entries := h.service.ListTransactions(c.UserContext(), w.ID)
	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTransactionResponse(e))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns the reconciled balance of the authenticated user's wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	w, err := h.service.GetBalance(c.UserContext(), uid)
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{
		Balance:   json.Number(w.Balance.String()),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	})
}

func toAPIError(err error) error {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return apierror.Wrap(err, http.StatusNotFound, codeWalletNotFound, "wallet not found")
	case errors.Is(err, ErrDuplicateWallet):
		return apierror.Wrap(err, http.StatusConflict, codeDuplicateWallet, "wallet already exists")
	case errors.Is(err, ErrInsufficientFunds):
		return apierror.Wrap(err, http.StatusBadRequest, codeInsufficientFunds, "insufficient funds")
	case errors.Is(err, ErrSelfTransfer):
		return apierror.Wrap(err, http.StatusBadRequest, codeSelfTransfer, "cannot transfer money to yourself")
	case errors.Is(err, ErrInvalidAmount):
		return apierror.Wrap(err, http.StatusBadRequest, codeInvalidAmount, "invalid amount")
	}
	return apierror.From(err)
}

func toWalletResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   json.Number(w.Balance.String()),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		WalletID:         t.WalletID,
		Type:             string(t.Type),
		Amount:           json.Number(t.Amount.String()),
		SenderWalletID:   t.SenderWalletID,
		ReceiverWalletID: t.ReceiverWalletID,
		Description:      t.Description,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

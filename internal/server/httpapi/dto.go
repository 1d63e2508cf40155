package httpapi

import (
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/services"
	"github.com/shopspring/decimal"
)

// Requests. Field rules are checked by the validator before a service is
// called; business rules stay in the services.

type registerRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type createTransactionRequest struct {
	Asset         string          `json:"asset" validate:"omitempty,alphanum,max=10"`
	Amount        decimal.Decimal `json:"amount"`
	CryptoType    string          `json:"crypto_type" validate:"omitempty,alphanum,max=10"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=64"`
	Kind          string          `json:"kind" validate:"omitempty,oneof=deposit withdrawal"`
}

type webhookRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,uuid"`
	Status        string `json:"status" validate:"required,oneof=paid failed"`
}

// Responses.

type userResponse struct {
	ID             string                     `json:"id"`
	Email          string                     `json:"email"`
	Name           string                     `json:"name"`
	CreatedAt      time.Time                  `json:"created_at"`
	TotalDeposited decimal.Decimal            `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal            `json:"total_withdrawn"`
	Balances       map[string]decimal.Decimal `json:"balances,omitempty"`
}

func newUserResponse(u *models.User, balances map[string]decimal.Decimal) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		CreatedAt:      u.CreatedAt,
		TotalDeposited: u.TotalDeposited,
		TotalWithdrawn: u.TotalWithdrawn,
		Balances:       balances,
	}
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

type transactionResponse struct {
	ID            string          `json:"id"`
	UserID        *string         `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	Kind          string          `json:"kind"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount"`
	CryptoType    string          `json:"crypto_type"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

func newTransactionResponse(t *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		UserID:        t.UserID,
		UserEmail:     t.UserEmail,
		Kind:          string(t.Kind),
		Asset:         t.Asset,
		Amount:        t.FiatAmount,
		CryptoAmount:  t.CryptoAmount,
		CryptoType:    t.CryptoType,
		PaymentMethod: t.PaymentMethod,
		PaymentStatus: string(t.Status),
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    t.ResolvedAt,
	}
}

func newTransactionList(txs []*models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionResponse(t))
	}
	return out
}

type transactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
}

type balancesResponse struct {
	Balances map[string]decimal.Decimal `json:"balances"`
}

type usersResponse struct {
	Users []services.UserSnapshot `json:"users"`
}

type resetsResponse struct {
	PasswordResets []services.ResetSnapshot `json:"password_resets"`
}

type reconcileRow struct {
	UserID     string          `json:"user_id"`
	Asset      string          `json:"asset"`
	Balance    decimal.Decimal `json:"balance"`
	Computed   decimal.Decimal `json:"computed"`
	Consistent bool            `json:"consistent"`
}

type reconcileResponse struct {
	Consistent bool           `json:"consistent"`
	Rows       []reconcileRow `json:"rows"`
}

type exportResponse struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fiatPlaces is the precision fiat amounts are stored with.
const fiatPlaces = 2

// maxAmountExponent bounds the decimal exponent of an incoming amount.
// Rounding or comparing 1e5000000 would expand it into a huge integer.
const maxAmountExponent = 18

// maxStoredAmount is the exclusive upper bound of the NUMERIC columns that
// hold fiat and crypto amounts.
var maxStoredAmount = decimal.New(1, 18)

// DefaultMaxFiatAmount caps a single transaction unless configured.
var DefaultMaxFiatAmount = decimal.NewFromInt(1_000_000)

// CreateTransactionInput describes a new payment. A nil UserID records a
// guest checkout. Asset falls back to CryptoType when empty.
type CreateTransactionInput struct {
	UserID        *string
	Kind          models.TransactionKind
	Asset         string
	FiatAmount    decimal.Decimal
	CryptoType    string
	PaymentMethod string
}

// TransactionService records payments and drives their single status
// transition. It is the only caller of the ledger engine.
type TransactionService struct {
	repomanager repomanager.RepositoryManager
	ledger      *LedgerService
	prices      *PriceTable
	maxFiat     decimal.Decimal
	now         timex.Clock
	log         logging.Logger
}

func NewTransactionService(m repomanager.RepositoryManager, ledger *LedgerService, prices *PriceTable, log logging.Logger) *TransactionService {
	return &TransactionService{
		repomanager: m,
		ledger:      ledger,
		prices:      prices,
		maxFiat:     DefaultMaxFiatAmount,
		now:         timex.Now,
		log:         log.With("module", "transactions"),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *TransactionService) WithClock(c timex.Clock) *TransactionService {
	s.now = c
	return s
}

// WithMaxFiatAmount sets the largest fiat amount a transaction may carry.
// Non-positive values keep the current limit.
func (s *TransactionService) WithMaxFiatAmount(limit decimal.Decimal) *TransactionService {
	if limit.IsPositive() {
		s.maxFiat = limit
	}
	return s
}

// checkAmount rejects amounts that are out of range before they are
// rounded or quoted.
func (s *TransactionService) checkAmount(amount decimal.Decimal) error {
	if e := amount.Exponent(); e > maxAmountExponent || e < -maxAmountExponent {
		return common.ErrAmountOutOfRange
	}
	if amount.GreaterThan(s.maxFiat) {
		return common.ErrAmountOutOfRange
	}
	return nil
}

// Create validates in, quotes the crypto amount and stores a pending
// transaction.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	if err := s.checkAmount(in.FiatAmount); err != nil {
		return nil, err
	}

	asset := common.NormalizeAsset(in.Asset)
	cryptoType := common.NormalizeAsset(in.CryptoType)
	if asset == "" {
		asset = cryptoType
	}
	if cryptoType == "" {
		cryptoType = asset
	}
	if asset == "" {
		return nil, common.Validationf("asset is required")
	}
	if !s.prices.Supports(asset) {
		return nil, common.ErrUnsupportedAsset
	}

	fiat := in.FiatAmount.Round(fiatPlaces)
	if !fiat.IsPositive() {
		return nil, common.ErrInvalidAmount
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return nil, common.Validationf("payment method is required")
	}

	kind := in.Kind
	if kind == "" {
		kind = models.KindDeposit
	}
	if !kind.Valid() {
		return nil, common.Validationf("unknown transaction kind %q", kind)
	}
	if in.UserID == nil && kind != models.KindDeposit {
		return nil, common.Validationf("guest checkout supports deposits only")
	}

	crypto, err := s.prices.Quote(asset, fiat)
	if err != nil {
		return nil, err
	}
	if !crypto.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	if crypto.GreaterThanOrEqual(maxStoredAmount) {
		return nil, common.ErrAmountOutOfRange
	}

	repos := s.repomanager.Repositories()

	email := common.GuestEmail
	var userID *string
	if in.UserID != nil {
		user, err := repos.Users().GetByID(ctx, *in.UserID)
		if err != nil {
			return nil, err
		}
		email = user.Email
		id := user.ID
		userID = &id
	}

	t := &models.Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		UserEmail:     email,
		Kind:          kind,
		Asset:         asset,
		FiatAmount:    fiat,
		CryptoAmount:  crypto,
		CryptoType:    cryptoType,
		PaymentMethod: method,
		Status:        models.StatusPending,
		CreatedAt:     s.now(),
	}
	if err := repos.Transactions().Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "transaction created", "tx_id", t.ID, "kind", t.Kind, "asset", t.Asset, "guest", t.IsGuest())
	return t, nil
}

// Get returns a transaction. Malformed ids are reported as not found.
func (s *TransactionService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Repositories().Transactions().Get(ctx, id)
}

// ListByUser returns the user's transactions, newest first.
func (s *TransactionService) ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	return s.repomanager.Repositories().Transactions().ListByUser(ctx, userID)
}

// MarkPaid confirms a pending transaction. For a user transaction it posts
// exactly one ledger entry sourced from the transaction id and bumps the
// user's fiat totals; guest transactions only change status. If the posting
// fails (a withdrawal larger than the balance) nothing changes and the
// transaction stays pending.
func (s *TransactionService) MarkPaid(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return nil, common.ErrTransactionResolved
	}

	if !t.IsGuest() {
		unlock := s.ledger.LockUser(*t.UserID)
		defer unlock()
	}

	var out *models.Transaction
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		cur, err := repos.Transactions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusPending {
			return common.ErrTransactionResolved
		}

		if !cur.IsGuest() {
			if err := s.post(ctx, repos, cur); err != nil {
				return err
			}
		}

		now := s.now()
		if err := repos.Transactions().Resolve(ctx, cur.ID, models.StatusPaid, now); err != nil {
			return err
		}
		cur.Status, cur.ResolvedAt = models.StatusPaid, &now
		out = cur
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			s.log.Warn(ctx, "transaction not paid: insufficient balance", "tx_id", id)
		}
		return nil, err
	}

	s.log.Info(ctx, "transaction paid", "tx_id", out.ID, "kind", out.Kind)
	return out, nil
}

func (s *TransactionService) post(ctx context.Context, repos repomanager.Repositories, t *models.Transaction) error {
	p := Posting{
		UserID:     *t.UserID,
		Asset:      t.Asset,
		Direction:  models.Credit,
		Amount:     t.CryptoAmount,
		SourceTxID: t.ID,
	}
	deposited, withdrawn := t.FiatAmount, decimal.Zero
	if t.Kind == models.KindWithdrawal {
		p.Direction = models.Debit
		deposited, withdrawn = decimal.Zero, t.FiatAmount
	}

	applied, err := s.ledger.Apply(ctx, repos, p)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	return repos.Users().AddTotals(ctx, *t.UserID, deposited, withdrawn)
}

// MarkFailed records a terminal failure. It never touches a ledger.
func (s *TransactionService) MarkFailed(ctx context.Context, id string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	var out *models.Transaction
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		cur, err := repos.Transactions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusPending {
			return common.ErrTransactionResolved
		}
		now := s.now()
		if err := repos.Transactions().Resolve(ctx, cur.ID, models.StatusFailed, now); err != nil {
			return err
		}
		cur.Status, cur.ResolvedAt = models.StatusFailed, &now
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "transaction failed", "tx_id", out.ID)
	return out, nil
}

// Resolve dispatches to MarkPaid or MarkFailed.
func (s *TransactionService) Resolve(ctx context.Context, id string, status models.PaymentStatus) (*models.Transaction, error) {
	switch status {
	case models.StatusPaid:
		return s.MarkPaid(ctx, id)
	case models.StatusFailed:
		return s.MarkFailed(ctx, id)
	default:
		return nil, common.Validationf("status must be %q or %q", models.StatusPaid, models.StatusFailed)
	}
}

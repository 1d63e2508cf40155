package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Archiver stores an export under key.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Stats is the global aggregate over all transactions. It is recomputed on
// every call.
type Stats struct {
	TotalUsers        int64                          `json:"total_users"`
	TotalTransactions int64                          `json:"total_transactions"`
	TotalRevenue      decimal.Decimal                `json:"total_revenue"`
	PlatformFeeEarned decimal.Decimal                `json:"platform_fee_earned"`
	FeeRate           decimal.Decimal                `json:"fee_rate"`
	StatusCounts      map[models.PaymentStatus]int64 `json:"status_counts"`
}

// UserSnapshot is a user as listed to the admin: no password hash, with
// current balances.
type UserSnapshot struct {
	ID             string                     `json:"id"`
	Email          string                     `json:"email"`
	Name           string                     `json:"name"`
	CreatedAt      time.Time                  `json:"created_at"`
	TotalDeposited decimal.Decimal            `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal            `json:"total_withdrawn"`
	Balances       map[string]decimal.Decimal `json:"balances"`
}

// ResetSnapshot is a password-reset request as listed to the admin. The
// token hash is never exposed.
type ResetSnapshot struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	Status    models.ResetStatus `json:"status"`
}

// ReportService is the read-only admin view. Every method requires an
// admin principal.
type ReportService struct {
	repomanager repomanager.RepositoryManager
	ledger      *LedgerService
	feeRate     decimal.Decimal
	archiver    Archiver
	now         timex.Clock
	log         logging.Logger
}

// NewReportService builds the reporter. archiver may be nil, in which case
// Export is unavailable.
func NewReportService(m repomanager.RepositoryManager, ledger *LedgerService, feeRate decimal.Decimal, archiver Archiver, log logging.Logger) *ReportService {
	return &ReportService{
		repomanager: m,
		ledger:      ledger,
		feeRate:     feeRate,
		archiver:    archiver,
		now:         timex.Now,
		log:         log.With("module", "reports"),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *ReportService) WithClock(c timex.Clock) *ReportService {
	s.now = c
	return s
}

func requireAdmin(p *models.Principal) error {
	if p == nil || p.Kind != models.PrincipalAdmin {
		return common.ErrForbidden
	}
	return nil
}

// Stats folds the transaction set from one snapshot. Revenue counts paid
// transactions of every kind.
func (s *ReportService) Stats(ctx context.Context, p *models.Principal) (*Stats, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var (
		users  int64
		totals *models.TransactionTotals
	)
	err := s.repomanager.WithReadTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		var err error
		if users, err = repos.Users().Count(ctx); err != nil {
			return err
		}
		totals, err = repos.Transactions().Totals(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalUsers:        users,
		TotalTransactions: totals.Count,
		TotalRevenue:      totals.PaidRevenue,
		PlatformFeeEarned: totals.PaidRevenue.Mul(s.feeRate),
		FeeRate:           s.feeRate,
		StatusCounts:      totals.StatusCounts,
	}, nil
}

func (s *ReportService) ListUsers(ctx context.Context, p *models.Principal) ([]UserSnapshot, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	users, err := s.repomanager.Repositories().Users().List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]UserSnapshot, 0, len(users))
	for _, u := range users {
		balances, err := s.ledger.Balances(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, UserSnapshot{
			ID:             u.ID,
			Email:          u.Email,
			Name:           u.Name,
			CreatedAt:      u.CreatedAt,
			TotalDeposited: u.TotalDeposited,
			TotalWithdrawn: u.TotalWithdrawn,
			Balances:       balances,
		})
	}
	return out, nil
}

func (s *ReportService) ListTransactions(ctx context.Context, p *models.Principal) ([]*models.Transaction, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.repomanager.Repositories().Transactions().List(ctx)
}

func (s *ReportService) ListPasswordResets(ctx context.Context, p *models.Principal) ([]ResetSnapshot, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	resets, err := s.repomanager.Repositories().Resets().List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]ResetSnapshot, 0, len(resets))
	for _, r := range resets {
		out = append(out, ResetSnapshot{
			ID:        r.ID,
			Email:     r.Email,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
			Status:    r.Status(now),
		})
	}
	return out, nil
}

// Reconcile reports, per user and asset, the stored balance next to the fold
// of its ledger entries.
func (s *ReportService) Reconcile(ctx context.Context, p *models.Principal) ([]models.ReconcileRow, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.ledger.Reconcile(ctx)
}

// ArchiveEnabled reports whether Export can run.
func (s *ReportService) ArchiveEnabled() bool { return s.archiver != nil }

type exportDocument struct {
	GeneratedAt  time.Time             `json:"generated_at"`
	Stats        *Stats                `json:"stats"`
	Transactions []*models.Transaction `json:"transactions"`
}

// Export writes stats and the full transaction list to the archive and
// returns the object key.
func (s *ReportService) Export(ctx context.Context, p *models.Principal) (string, error) {
	if err := requireAdmin(p); err != nil {
		return "", err
	}
	if s.archiver == nil {
		return "", fmt.Errorf("archive is not configured: %w", common.ErrNotFound)
	}

	stats, err := s.Stats(ctx, p)
	if err != nil {
		return "", err
	}
	txs, err := s.ListTransactions(ctx, p)
	if err != nil {
		return "", err
	}

	now := s.now()
	body, err := json.Marshal(exportDocument{GeneratedAt: now, Stats: stats, Transactions: txs})
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	key := ExportKey(now, uuid.NewString())
	if err := s.archiver.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("archive export: %w", err)
	}

	s.log.Info(ctx, "transactions exported", "key", key, "count", len(txs))
	return key, nil
}

// ExportKey returns the object key for an export made at t.
func ExportKey(t time.Time, id string) string {
	return fmt.Sprintf("transactions/%s/%s.json", t.UTC().Format("2006/01/02"), id)
}

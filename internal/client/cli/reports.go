package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/client/client"
	"github.com/dmitrijs2005/cryptodesk/internal/client/models"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func (a *App) Stats(ctx context.Context) error {
	s, err := a.api.Stats(ctx)
	if err != nil {
		return err
	}

	tw := newTable(a.out)
	fmt.Fprintf(tw, "Users\t%d\n", s.TotalUsers)
	fmt.Fprintf(tw, "Transactions\t%d\n", s.TotalTransactions)
	for _, st := range sortedKeys(s.StatusCounts) {
		fmt.Fprintf(tw, "  %s\t%d\n", st, s.StatusCounts[st])
	}
	fmt.Fprintf(tw, "Revenue\t%s\n", s.TotalRevenue.StringFixed(2))
	fmt.Fprintf(tw, "Fee earned (%s%%)\t%s\n", s.FeeRate.Shift(2).String(), s.PlatformFeeEarned.String())
	return tw.Flush()
}

func (a *App) Users(ctx context.Context) error {
	users, err := a.api.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(a.out, "No users")
		return nil
	}

	tw := newTable(a.out)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tDEPOSITED\tWITHDRAWN\tBALANCES")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name,
			u.TotalDeposited.StringFixed(2), u.TotalWithdrawn.StringFixed(2), formatBalances(u.Balances))
	}
	return tw.Flush()
}

func (a *App) Transactions(ctx context.Context) error {
	txs, err := a.api.Transactions(ctx)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No transactions")
		return nil
	}

	tw := newTable(a.out)
	fmt.Fprintln(tw, "ID\tCREATED\tUSER\tKIND\tAMOUNT\tCRYPTO\tMETHOD\tSTATUS")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n", t.ID, formatTime(t.CreatedAt), t.UserEmail,
			t.Kind, t.Amount.StringFixed(2), t.CryptoAmount.String(), t.CryptoType, t.PaymentMethod, t.PaymentStatus)
	}
	return tw.Flush()
}

func (a *App) Resets(ctx context.Context) error {
	resets, err := a.api.PasswordResets(ctx)
	if err != nil {
		return err
	}
	if len(resets) == 0 {
		fmt.Fprintln(a.out, "No password resets")
		return nil
	}

	tw := newTable(a.out)
	fmt.Fprintln(tw, "ID\tEMAIL\tCREATED\tEXPIRES\tSTATUS")
	for _, r := range resets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Email, formatTime(r.CreatedAt), formatTime(r.ExpiresAt), r.Status)
	}
	return tw.Flush()
}

func (a *App) Reconcile(ctx context.Context) error {
	rep, err := a.api.Reconcile(ctx)
	if err != nil {
		return err
	}

	var bad []models.ReconcileRow
	for _, r := range rep.Rows {
		if !r.Consistent {
			bad = append(bad, r)
		}
	}
	if rep.Consistent {
		fmt.Fprintf(a.out, "Ledger consistent (%d balances checked)\n", len(rep.Rows))
		return nil
	}

	fmt.Fprintf(a.out, "Ledger INCONSISTENT: %d of %d balances differ\n", len(bad), len(rep.Rows))
	tw := newTable(a.out)
	fmt.Fprintln(tw, "USER\tASSET\tBALANCE\tCOMPUTED")
	for _, r := range bad {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.UserID, r.Asset, r.Balance.String(), r.Computed.String())
	}
	return tw.Flush()
}

func (a *App) Export(ctx context.Context) error {
	key, err := a.api.Export(ctx)
	if errors.Is(err, client.ErrNotFound) {
		fmt.Fprintln(a.out, "Archive is not configured on the server")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Exported to", key)
	return nil
}

func (a *App) MarkPaid(ctx context.Context, id string) error {
	t, err := a.api.MarkPaid(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Transaction %s is %s\n", t.ID, t.PaymentStatus)
	return nil
}

func (a *App) MarkFailed(ctx context.Context, id string) error {
	t, err := a.api.MarkFailed(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Transaction %s is %s\n", t.ID, t.PaymentStatus)
	return nil
}

func formatBalances(b map[string]decimal.Decimal) string {
	if len(b) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(b))
	for _, asset := range sortedKeys(b) {
		parts = append(parts, asset+"="+b[asset].String())
	}
	return strings.Join(parts, " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

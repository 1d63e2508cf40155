package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (h *handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	token, err := h.auth.AdminLogin(r.Context(), req.Email, req.Password)
	h.metrics.Login(string(models.PrincipalAdmin), err == nil)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *handler) adminChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	if err := h.auth.AdminChangePassword(r.Context(), principalFrom(r.Context()), req.NewPassword); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed"})
}

func (h *handler) adminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.reports.ListUsers(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

func (h *handler) adminTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.reports.ListTransactions(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: newTransactionList(txs)})
}

func (h *handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Stats(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) adminPasswordResets(w http.ResponseWriter, r *http.Request) {
	resets, err := h.reports.ListPasswordResets(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetsResponse{PasswordResets: resets})
}

func (h *handler) adminReconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.Reconcile(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	resp := reconcileResponse{Consistent: true, Rows: make([]reconcileRow, 0, len(rows))}
	for _, row := range rows {
		ok := row.Consistent()
		resp.Consistent = resp.Consistent && ok
		resp.Rows = append(resp.Rows, reconcileRow{
			UserID:     row.UserID,
			Asset:      row.Asset,
			Balance:    row.Balance,
			Computed:   row.Computed,
			Consistent: ok,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) adminExport(w http.ResponseWriter, r *http.Request) {
	key, err := h.reports.Export(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Key: key})
}

func (h *handler) adminMarkPaid(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, chi.URLParam(r, "id"), models.StatusPaid)
}

func (h *handler) adminMarkFailed(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, chi.URLParam(r, "id"), models.StatusFailed)
}

package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/services"
)

func (h *handler) userTransactions(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	txs, err := h.txs.ListByUser(r.Context(), p.ID)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: newTransactionList(txs)})
}

func (h *handler) createUserTransaction(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	h.createTransaction(w, r, &p.ID)
}

func (h *handler) createGuestTransaction(w http.ResponseWriter, r *http.Request) {
	h.createTransaction(w, r, nil)
}

func (h *handler) createTransaction(w http.ResponseWriter, r *http.Request, userID *string) {
	var req createTransactionRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	tx, err := h.txs.Create(r.Context(), services.CreateTransactionInput{
		UserID:        userID,
		Kind:          models.TransactionKind(req.Kind),
		Asset:         req.Asset,
		FiatAmount:    req.Amount,
		CryptoType:    req.CryptoType,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	h.metrics.Transaction("created")
	writeJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

// webhook is the payment provider's callback.
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	h.resolve(w, r, req.TransactionID, models.PaymentStatus(req.Status))
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request, id string, status models.PaymentStatus) {
	tx, err := h.txs.Resolve(r.Context(), id, status)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	h.metrics.Transaction(string(tx.Status))
	writeJSON(w, http.StatusOK, newTransactionResponse(tx))
}

package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

// resetRequestedMessage is returned whether or not the email is known.
const resetRequestedMessage = "If the email is registered, a password reset link has been sent"

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	user, token, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	balances, err := h.ledger.Balances(r.Context(), user.ID)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: newUserResponse(user, balances), Token: token})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	h.metrics.Login(string(models.PrincipalUser), err == nil)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	balances, err := h.ledger.Balances(r.Context(), user.ID)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: newUserResponse(user, balances), Token: token})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	token, err := h.resets.RequestReset(r.Context(), req.Email)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	if token != "" {
		h.metrics.Reset("requested")
	}

	resp := messageResponse{Message: resetRequestedMessage}
	if h.opts.ExposeResetTokens {
		resp.ResetToken = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}

	if err := h.resets.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	h.metrics.Reset("completed")
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), principalFrom(r.Context())); err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	user, err := h.auth.Me(r.Context(), p)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	balances, err := h.ledger.Balances(r.Context(), user.ID)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, balances))
}

func (h *handler) balances(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	balances, err := h.ledger.Balances(r.Context(), p.ID)
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, balancesResponse{Balances: balances})
}

package handlers

import (
	"net/http"

	"github.com/Dosada05/chip-tournament-system/services"
)

type AccountHandler struct {
	accountService    *services.AccountService
	settlementService *services.SettlementService
}

func NewAccountHandler(accountService *services.AccountService, settlementService *services.SettlementService) *AccountHandler {
	return &AccountHandler{accountService: accountService, settlementService: settlementService}
}

func (h *AccountHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "accountID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	account, err := h.accountService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"account": account}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Transactions — история расчётов аккаунта, новые записи первыми.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "accountID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	transactions, err := h.settlementService.TransactionHistory(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"transactions": transactions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AccountHandler) TransactionSummary(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "accountID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	summary, err := h.settlementService.TransactionSummary(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"summary": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

package handlers

import (
	"net/http"

	"github.com/Dosada05/chip-tournament-system/services"
)

// SettlementHandler обслуживает транзакционные операции: ставка раунда,
// аннулирование и административная корректировка.
type SettlementHandler struct {
	settlementService *services.SettlementService
}

func NewSettlementHandler(settlementService *services.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService}
}

func (h *SettlementHandler) Bet(w http.ResponseWriter, r *http.Request) {
	var input services.SettleRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.settlementService.SettleRound(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SettlementHandler) Void(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ResultID int `json:"result_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	compensation, err := h.settlementService.VoidRoundResult(r.Context(), input.ResultID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": compensation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SettlementHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var input services.AdjustChipsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.settlementService.AdjustChips(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

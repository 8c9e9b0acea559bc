package handlers

import (
	"net/http"

	"github.com/Dosada05/chip-tournament-system/services"
)

type PlatformHandler struct {
	platformService *services.PlatformService
	accountService  *services.AccountService
}

func NewPlatformHandler(platformService *services.PlatformService, accountService *services.AccountService) *PlatformHandler {
	return &PlatformHandler{platformService: platformService, accountService: accountService}
}

func (h *PlatformHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreatePlatformInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	platform, err := h.platformService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"platform": platform}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlatformHandler) List(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.platformService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"platforms": platforms}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlatformHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "platformID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	platform, err := h.platformService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"platform": platform}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlatformHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "platformID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	accounts, err := h.accountService.ListByPlatform(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"accounts": accounts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

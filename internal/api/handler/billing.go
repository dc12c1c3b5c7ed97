package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobit/compute/internal/api/middleware"
	"github.com/autobit/compute/internal/api/request"
	"github.com/autobit/compute/internal/api/response"
	"github.com/autobit/compute/internal/core"
)

type Billing struct {
	svc *core.BillingService
}

func NewBilling(svc *core.BillingService) *Billing {
	return &Billing{svc: svc}
}

func (h *Billing) Rates(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.svc.Rates())
}

func (h *Billing) Generate(w http.ResponseWriter, r *http.Request) {
	var req request.GenerateInvoice
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.Generate(r.Context(), middleware.UserID(r.Context()), req.PeriodStart, req.PeriodEnd)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Billing) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	invoices, hasMore, err := h.svc.ListInvoices(r.Context(), middleware.UserID(r.Context()), p.Limit, p.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	nextCursor := ""
	if hasMore {
		nextCursor = invoices[len(invoices)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, invoices, nextCursor, hasMore)
}

func (h *Billing) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.GetInvoice(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, inv)
}

func (h *Billing) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.PayInvoice
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.svc.Pay(r.Context(), middleware.UserID(r.Context()), id, req.Method)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, txn)
}

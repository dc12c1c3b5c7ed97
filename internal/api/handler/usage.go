package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobit/compute/internal/api/middleware"
	"github.com/autobit/compute/internal/api/request"
	"github.com/autobit/compute/internal/api/response"
	"github.com/autobit/compute/internal/core"
)

type Usage struct {
	servers *core.ServerService
	usage   *core.UsageService
}

func NewUsage(servers *core.ServerService, usage *core.UsageService) *Usage {
	return &Usage{servers: servers, usage: usage}
}

// Query serves aggregated usage for one server. Ownership is checked first so
// a foreign server id reads as not found rather than as an empty series.
func (h *Usage) Query(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := request.ParseUsageQuery(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.servers.GetByID(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	buckets, err := h.usage.Aggregate(r.Context(), id, q.From, q.To, q.Interval)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"server_id": id,
		"interval":  q.Interval,
		"buckets":   buckets,
	})
}

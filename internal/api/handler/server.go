package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autobit/compute/internal/api/middleware"
	"github.com/autobit/compute/internal/api/request"
	"github.com/autobit/compute/internal/api/response"
	"github.com/autobit/compute/internal/core"
	"github.com/autobit/compute/internal/model"
	"github.com/autobit/compute/internal/platform"
)

type Server struct {
	svc *core.ServerService
}

func NewServer(svc *core.ServerService) *Server {
	return &Server{svc: svc}
}

func (h *Server) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateServer
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := req.Name
	if name == "" {
		name = platform.NewName("server-")
	}

	now := time.Now().UTC()
	srv := &model.Server{
		ID:        platform.NewID(),
		UserID:    middleware.UserID(r.Context()),
		Name:      name,
		Image:     req.Image,
		CPULimit:  req.CPULimit,
		Cores:     req.Cores,
		RAMGiB:    req.RAMGiB,
		DiskGiB:   req.DiskGiB,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.svc.Create(r.Context(), srv); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, srv)
}

func (h *Server) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	servers, hasMore, err := h.svc.ListByUser(r.Context(), middleware.UserID(r.Context()), p.Limit, p.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	nextCursor := ""
	if hasMore {
		nextCursor = servers[len(servers)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, servers, nextCursor, hasMore)
}

func (h *Server) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv, err := h.svc.GetByID(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, srv)
}

func (h *Server) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateServer
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), id, core.ServerUpdate{
		Name:     req.Name,
		CPULimit: req.CPULimit,
		Cores:    req.Cores,
		RAMGiB:   req.RAMGiB,
		DiskGiB:  req.DiskGiB,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, srv)
}

func (h *Server) Start(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Start(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": model.ServerStatusRunning})
}

func (h *Server) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Stop(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": model.ServerStatusStopped})
}

func (h *Server) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

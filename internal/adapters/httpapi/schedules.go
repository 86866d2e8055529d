package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/app"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type SchedulesHandler struct {
	schedules *app.ScheduleService
}

func NewSchedulesHandler(schedules *app.ScheduleService) *SchedulesHandler {
	return &SchedulesHandler{schedules: schedules}
}

func (h *SchedulesHandler) Routes(r chi.Router) {
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/run", h.run)
	})
}

type createScheduleRequest struct {
	PortalURL     string `json:"portalUrl"`
	MAC           string `json:"mac"`
	Kind          string `json:"kind"`
	Label         string `json:"label,omitempty"`
	IntervalHours int    `json:"intervalHours,omitempty"`
}

func (h *SchedulesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sched, err := h.schedules.Create(r.Context(), req.PortalURL, req.MAC, req.Kind, req.Label, req.IntervalHours)
	if err != nil {
		if errors.Is(err, app.ErrConflict) {
			httpjson.WriteError(w, http.StatusConflict, "schedule already exists")
			return
		}
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpjson.Write(w, http.StatusCreated, sched)
}

func (h *SchedulesHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scheds, err := h.schedules.List(r.Context(), limit)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, scheds)
}

func (h *SchedulesHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sched, err := h.schedules.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, sched)
}

func (h *SchedulesHandler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto app.ScheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	dto.ID = id
	updated, err := h.schedules.Update(r.Context(), dto)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, updated)
}

func (h *SchedulesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.schedules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchedulesHandler) run(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	enqueue := true
	if v := r.URL.Query().Get("enqueue"); v == "0" || v == "false" {
		enqueue = false
	}
	res, err := h.schedules.RunOnce(r.Context(), id, enqueue)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}

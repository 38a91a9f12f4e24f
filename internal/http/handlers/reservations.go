package handlers

import (
	"encoding/json"
	"net/http"

	"foh-order-service/internal/reservations"
	"foh-order-service/pkg/response"
)

func (h *Handler) ReservationsList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reservations.List(r.Context())
	if err != nil {
		response.Fault(w, err)
		return
	}
	response.Success(w, list)
}

func (h *Handler) ReservationCreate(w http.ResponseWriter, r *http.Request) {
	var req reservations.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	saved, err := h.Reservations.Create(r.Context(), req)
	if err != nil {
		response.Fault(w, err)
		return
	}

	h.broadcast("reservation.created", map[string]any{
		"reservationId": saved.ID,
		"tableId":       saved.TableID,
		"date":          saved.Date,
		"time":          saved.Time,
	})
	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    saved,
	})
}

func (h *Handler) ReservationCancel(w http.ResponseWriter, r *http.Request) {
	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return
	}

	if err := h.Reservations.Cancel(r.Context(), id); err != nil {
		response.Fault(w, err)
		return
	}

	h.broadcast("reservation.cancelled", map[string]any{"reservationId": id})
	response.Success(w, map[string]any{"reservationId": id, "cancelled": true})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"foh-order-service/pkg/response"
)

func (h *Handler) TablesList(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Store.GetTables(r.Context())
	if err != nil {
		response.Error(w, http.StatusBadGateway, "PERSISTENCE_ERROR", "Table lookup failed")
		return
	}
	response.Success(w, tables)
}

type openTableRequest struct {
	Phone string `json:"phone"`
}

// TableOpen seats a walk-in at a table. When a reservation blocks the
// table, the body's phone number must match the one on file to consume
// it; the conflict response carries enough of the booking for staff to
// ask the guest.
func (h *Handler) TableOpen(w http.ResponseWriter, r *http.Request) {
	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var body openTableRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	result, err := h.Reservations.OpenTable(r.Context(), id, body.Phone)
	if err != nil {
		response.Fault(w, err)
		return
	}

	h.broadcast("table.opened", map[string]any{
		"tableId":             result.TableID,
		"consumedReservation": result.Consumed != nil,
	})
	response.Success(w, result)
}

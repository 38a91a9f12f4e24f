package handlers

import (
	"net/http"

	"foh-order-service/internal/receipt"
	"foh-order-service/pkg/response"
)

func (h *Handler) TransactionsList(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Transactions.History())
}

// TransactionsStats serves the revenue dashboard: last 7 days, last 6
// months, and lifetime totals in one payload.
func (h *Handler) TransactionsStats(w http.ResponseWriter, r *http.Request) {
	revenue, count := h.Transactions.Totals()
	response.Success(w, map[string]any{
		"daily":   h.Transactions.DailyStats(7),
		"monthly": h.Transactions.MonthlyStats(6),
		"totals": map[string]any{
			"revenue": revenue,
			"count":   count,
		},
	})
}

func (h *Handler) TransactionInvoiceText(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.transactionInvoice(w, r)
	if !ok {
		return
	}
	writeTextInvoice(w, doc)
}

func (h *Handler) TransactionInvoicePDF(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.transactionInvoice(w, r)
	if !ok {
		return
	}
	writePDFInvoice(w, doc)
}

func (h *Handler) transactionInvoice(w http.ResponseWriter, r *http.Request) (receipt.Document, bool) {
	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid transaction id")
		return receipt.Document{}, false
	}
	tx, found := h.Transactions.Find(id)
	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Transaction not found")
		return receipt.Document{}, false
	}
	return receipt.FromTransaction(tx), true
}

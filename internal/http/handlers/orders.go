package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"foh-order-service/internal/orders"
	"foh-order-service/internal/receipt"
	"foh-order-service/internal/store"
	"foh-order-service/pkg/response"

	"go.uber.org/zap"
)

type saveOrderRequest struct {
	Table string          `json:"table"`
	Items []saveOrderItem `json:"items"`
}

type saveOrderItem struct {
	DishName string `json:"dishName"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) OrdersList(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Orders.Orders())
}

func (h *Handler) OrderSave(w http.ResponseWriter, r *http.Request) {
	var body saveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	items := make([]orders.Item, len(body.Items))
	for i, item := range body.Items {
		items[i] = orders.Item{DishName: item.DishName, Quantity: item.Quantity}
	}

	status, err := h.Orders.SaveOrder(body.Table, items)
	if err != nil {
		response.Fault(w, err)
		return
	}

	h.broadcast("order.saved", map[string]any{
		"table":  strings.TrimSpace(body.Table),
		"status": string(status),
	})
	response.Success(w, map[string]any{"table": strings.TrimSpace(body.Table), "status": string(status)})
}

func (h *Handler) OrderGet(w http.ResponseWriter, r *http.Request) {
	table := readPathString(r, "table")
	order, ok := h.Orders.GetOrderByTable(table)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No active order for table "+table)
		return
	}
	response.Success(w, order)
}

// OrderComplete marks every pending item done and runs the
// consumption pass. Shortages and skipped dishes ride along in the
// payload; partial persistence failures come back as a fault that
// still names what was applied.
func (h *Handler) OrderComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table := readPathString(r, "table")

	result, err := h.Orders.MarkPendingItemsAsCompleted(ctx, table)

	for _, shortage := range result.Shortages {
		h.Events.InventoryShortage(ctx, shortage.IngredientID, shortage.Name, shortage.Required, shortage.Available)
	}

	if err != nil {
		h.Logger.Error("order completion failed", zap.String("table", table), zap.Error(err))
		response.JSON(w, http.StatusBadGateway, map[string]any{
			"success":     false,
			"error":       "PERSISTENCE_ERROR",
			"message":     "Inventory update failed for some ingredients",
			"consumption": result,
		})
		return
	}

	order, _ := h.Orders.GetOrderByTable(table)
	h.Events.OrderCompleted(ctx, table, len(order.Items))
	h.broadcast("order.completed", map[string]any{"table": table})
	response.Success(w, map[string]any{
		"table":       table,
		"consumption": result,
	})
}

type checkoutRequest struct {
	TotalAmount float64 `json:"totalAmount"`
}

func (h *Handler) OrderCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table := readPathString(r, "table")

	var body checkoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	total := body.TotalAmount
	if total <= 0 {
		// The billing screen usually sends the total it displayed;
		// when absent it is derived from the same prices the receipt
		// uses.
		computed, err := h.orderTotal(ctx, table)
		if err != nil {
			response.Fault(w, err)
			return
		}
		total = computed
	}

	result, err := h.Orders.CheckoutTable(ctx, table, total)
	if err != nil {
		response.Fault(w, err)
		return
	}

	h.archiveInvoice(ctx, result.Transaction)
	h.Events.OrderCheckedOut(ctx, table, result.Transaction.ID, result.Transaction.TotalAmount, result.Degraded)
	h.broadcast("order.checked_out", map[string]any{
		"table":         table,
		"transactionId": result.Transaction.ID,
	})

	if result.Degraded {
		response.Degraded(w, result, "Transaction recorded locally; history write failed")
		return
	}
	response.Success(w, result)
}

func (h *Handler) OrderRemove(w http.ResponseWriter, r *http.Request) {
	table := readPathString(r, "table")
	if !h.Orders.RemoveOrder(table) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No active order for table "+table)
		return
	}
	h.broadcast("order.removed", map[string]any{"table": table})
	response.Success(w, map[string]any{"table": table, "removed": true})
}

func (h *Handler) OrderInvoiceText(w http.ResponseWriter, r *http.Request) {
	doc, err := h.orderInvoice(r.Context(), readPathString(r, "table"))
	if err != nil {
		response.Fault(w, err)
		return
	}
	writeTextInvoice(w, doc)
}

func (h *Handler) OrderInvoicePDF(w http.ResponseWriter, r *http.Request) {
	doc, err := h.orderInvoice(r.Context(), readPathString(r, "table"))
	if err != nil {
		response.Fault(w, err)
		return
	}
	writePDFInvoice(w, doc)
}

// orderInvoice builds a priced document for an in-progress order.
func (h *Handler) orderInvoice(ctx context.Context, table string) (receipt.Document, error) {
	order, ok := h.Orders.GetOrderByTable(table)
	if !ok {
		return receipt.Document{}, notFoundOrder(table)
	}

	items, total, err := h.priceOrder(ctx, order)
	if err != nil {
		return receipt.Document{}, err
	}
	return receipt.FromTransaction(store.Transaction{
		TableLabel:  order.TableLabel,
		Items:       items,
		TotalAmount: total,
	}), nil
}

func (h *Handler) orderTotal(ctx context.Context, table string) (float64, error) {
	order, ok := h.Orders.GetOrderByTable(table)
	if !ok {
		return 0, notFoundOrder(table)
	}
	_, total, err := h.priceOrder(ctx, order)
	return total, err
}

func (h *Handler) priceOrder(ctx context.Context, order orders.Order) ([]store.TransactionItem, float64, error) {
	products, err := h.Store.GetProducts(ctx)
	if err != nil {
		return nil, 0, err
	}
	byName := make(map[string]store.Product, len(products))
	for _, p := range products {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}

	items := make([]store.TransactionItem, len(order.Items))
	var total float64
	for i, item := range order.Items {
		entry := store.TransactionItem{DishName: item.DishName, Quantity: item.Quantity}
		if p, ok := byName[strings.ToLower(strings.TrimSpace(item.DishName))]; ok {
			entry.Price = p.Price
		}
		total += entry.Price * float64(entry.Quantity)
		items[i] = entry
	}
	return items, total, nil
}

func (h *Handler) archiveInvoice(ctx context.Context, t store.Transaction) {
	if h.Archive == nil {
		return
	}
	doc := receipt.FromTransaction(t)
	url, err := h.Archive.PutInvoice(ctx, doc.Filename("txt"), []byte(doc.Text()))
	if err != nil {
		h.Logger.Warn("invoice archive failed",
			zap.String("table", t.TableLabel),
			zap.Int64("transactionId", t.ID),
			zap.Error(err))
		return
	}
	h.Logger.Info("invoice archived", zap.String("url", url))
}

func writeTextInvoice(w http.ResponseWriter, doc receipt.Document) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename("txt")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc.Text()))
}

func writePDFInvoice(w http.ResponseWriter, doc receipt.Document) {
	buf, err := doc.PDF()
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate invoice")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename("pdf")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

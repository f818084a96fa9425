package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/audit"
	"github.com/rayaadinda/kp-inventory/internal/events"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/response"
	"github.com/rayaadinda/kp-inventory/internal/store"
	"github.com/rayaadinda/kp-inventory/internal/validation"
	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

const MsgCheckoutSuccess = "Checkout successful"

// Handler holds dependencies for inventory handlers.
type Handler struct {
	DB        *sqlx.DB
	Items     store.ItemRepository
	Checkouts store.CheckoutRepository
	Hub       *websocket.Hub
	Events    events.Publisher
	Log       *zap.Logger

	// GetCurrentUser returns the authenticated caller.
	GetCurrentUser func(r *http.Request) models.User
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *Handler) username(r *http.Request) string {
	if h.GetCurrentUser == nil {
		return ""
	}
	return h.GetCurrentUser(r).Email
}

func (h *Handler) broadcast(resource, action, id string) {
	if h.Hub != nil {
		h.Hub.BroadcastChange(resource, action, id)
	}
}

func (h *Handler) audit(r *http.Request, opts audit.Options) {
	if h.DB == nil {
		return
	}
	if err := audit.Log(r.Context(), h.DB, opts); err != nil {
		h.logger().Warn("audit write failed", zap.String("module", opts.Module), zap.Error(err))
	}
}

// ListInventory handles GET /api/inventory.
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items.List(r.Context())
	if err != nil {
		h.logger().Error("list inventory", zap.Error(err))
		response.Err(w, "failed to load inventory", 500)
		return
	}
	response.JSON(w, items)
}

// CreateItem handles POST /api/inventory.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req models.CreateItemRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	req.ProductCode = strings.TrimSpace(req.ProductCode)
	req.ProductName = strings.TrimSpace(req.ProductName)

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "productCode", req.ProductCode)
	validation.ValidateProductCode(ve, "productCode", req.ProductCode)
	validation.RequireField(ve, "productName", req.ProductName)
	validation.ValidateMaxLength(ve, "productName", req.ProductName, validation.MaxStringLength)
	validation.ValidateMaxLength(ve, "supplier", req.Supplier, validation.MaxStringLength)
	validation.ValidateMaxLength(ve, "location", req.Location, validation.MaxStringLength)
	validation.ValidateIntRange(ve, "quantity", req.Quantity, 0, validation.MaxQuantity)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	item, err := h.Items.Create(r.Context(), req)
	if errors.Is(err, store.ErrDuplicateCode) {
		response.Err(w, fmt.Sprintf("product code %s already exists", req.ProductCode), 409)
		return
	}
	if err != nil {
		h.logger().Error("create item", zap.Error(err))
		response.Err(w, "failed to create item", 500)
		return
	}

	opts := audit.FromRequest(r, h.username(r), audit.ActionCreate, "inventory", item.ID, "Created "+item.ProductCode)
	opts.AfterValue = item
	h.audit(r, opts)
	h.broadcast("inventory", "create", item.ID)
	response.JSONStatus(w, 201, item, "")
}

// UpdateItem handles PUT /api/inventory/:id.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, id string) {
	var req models.UpdateItemRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if req.Quantity == nil {
		response.Err(w, "quantity: is required", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateIntRange(ve, "quantity", *req.Quantity, 0, validation.MaxQuantity)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	before, err := h.Items.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Err(w, "item not found", 404)
		return
	}
	if err != nil {
		h.logger().Error("load item", zap.String("id", id), zap.Error(err))
		response.Err(w, "failed to update item", 500)
		return
	}
	item, err := h.Items.UpdateQuantity(r.Context(), id, *req.Quantity)
	if errors.Is(err, store.ErrNotFound) {
		response.Err(w, "item not found", 404)
		return
	}
	if err != nil {
		h.logger().Error("update item", zap.String("id", id), zap.Error(err))
		response.Err(w, "failed to update item", 500)
		return
	}

	opts := audit.FromRequest(r, h.username(r), audit.ActionUpdate, "inventory", id,
		fmt.Sprintf("Quantity of %s: %d -> %d", item.ProductCode, before.Quantity, item.Quantity))
	opts.BeforeValue = before
	opts.AfterValue = item
	h.audit(r, opts)
	h.broadcast("inventory", "update", id)
	response.JSON(w, item)
}

// DeleteItem handles DELETE /api/inventory/:id. Only admins reach it.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request, id string) {
	before, err := h.Items.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Err(w, "item not found", 404)
		return
	}
	if err == nil {
		err = h.Items.Delete(r.Context(), id)
	}
	if err != nil {
		h.logger().Error("delete item", zap.String("id", id), zap.Error(err))
		response.Err(w, "failed to delete item", 500)
		return
	}

	opts := audit.FromRequest(r, h.username(r), audit.ActionDelete, "inventory", id, "Deleted "+before.ProductCode)
	opts.BeforeValue = before
	h.audit(r, opts)
	h.broadcast("inventory", "delete", id)
	response.JSONStatus(w, 200, nil, "Item deleted")
}

// Checkout handles POST /api/inventory/checkout. Stock problems come back
// as {success: false, message} so the dashboard can show them inline.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	req.WorkOrderNumber = strings.TrimSpace(req.WorkOrderNumber)

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "workOrderNumber", req.WorkOrderNumber)
	validation.ValidateMaxLength(ve, "workOrderNumber", req.WorkOrderNumber, validation.MaxStringLength)
	if len(req.Items) == 0 {
		ve.Add("items", "is required")
	}
	if len(req.Items) > validation.MaxCheckoutRows {
		ve.Add("items", fmt.Sprintf("must have at most %d lines", validation.MaxCheckoutRows))
	}
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		validation.RequireField(ve, field+".itemCode", it.ItemCode)
		validation.ValidateIntRange(ve, field+".quantity", it.Quantity, 1, validation.MaxQuantity)
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	operator := h.username(r)
	report, err := h.Checkouts.Checkout(r.Context(), req, operator)
	var se *store.StockError
	if errors.As(err, &se) {
		response.Err(w, se.Error(), 400)
		return
	}
	if err != nil {
		h.logger().Error("checkout", zap.String("work_order", req.WorkOrderNumber), zap.Error(err))
		response.Err(w, "checkout failed", 500)
		return
	}

	h.logger().Info("checkout completed",
		zap.String("checkout_id", report.ID),
		zap.String("work_order", report.WorkOrder),
		zap.Int("total_items", report.TotalItems))

	opts := audit.FromRequest(r, operator, audit.ActionCheckout, "checkout", report.ID,
		fmt.Sprintf("Work order %s: %d items", report.WorkOrder, report.TotalItems))
	opts.AfterValue = report
	h.audit(r, opts)
	h.publish(report, req.Items)
	h.broadcast("checkout", "create", report.ID)
	response.JSONStatus(w, 200, report, MsgCheckoutSuccess)
}

// publish only logs failures: the checkout has already committed.
func (h *Handler) publish(report *models.CheckoutReport, items []models.CheckoutItem) {
	if h.Events == nil {
		return
	}
	evt := &models.CheckoutEvent{
		CheckoutID:      report.ID,
		WorkOrderNumber: report.WorkOrder,
		Operator:        report.Operator,
		Items:           items,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Events.PublishCheckout(context.Background(), evt); err != nil {
		h.logger().Warn("publish checkout event", zap.String("checkout_id", report.ID), zap.Error(err))
	}
}

// CheckoutHistory handles GET /api/inventory/checkout-history.
func (h *Handler) CheckoutHistory(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")

	ve := &validation.ValidationErrors{}
	validation.ValidateDate(ve, "startDate", start)
	validation.ValidateDate(ve, "endDate", end)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	reports, err := h.Checkouts.History(r.Context(), start, end)
	if err != nil {
		h.logger().Error("checkout history", zap.Error(err))
		response.Err(w, "failed to load checkout history", 500)
		return
	}
	response.JSON(w, reports)
}

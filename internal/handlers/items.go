package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/platform/pagination"
	"github.com/partsdesk/api/internal/services"
)

const maxItemBodySize = 8 * 1024

type createItemRequest struct {
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	CategoryID string `json:"category_id"`
}

type updateItemRequest struct {
	Name       *string `json:"name"`
	SKU        *string `json:"sku"`
	PriceCents *int64  `json:"price_cents"`
	CategoryID *string `json:"category_id"`
}

type itemPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	CategoryID string `json:"category_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type itemListResponse struct {
	Items []itemPayload `json:"items"`
}

// ItemHandlers exposes spare-part item CRUD endpoints.
type ItemHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewItemHandlers constructs a new ItemHandlers instance.
func NewItemHandlers(authn *auth.Authenticator, catalog services.CatalogService) *ItemHandlers {
	return &ItemHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /items endpoints.
func (h *ItemHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireBearer())
	}
	r.Post("/", h.createItem)
	r.Get("/", h.listItems)
	r.Get("/{itemID}", h.getItem)
	r.Patch("/{itemID}", h.updateItem)
	r.Delete("/{itemID}", h.deleteItem)
}

func (h *ItemHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createItemRequest
	if err := decodeJSONBody(r, maxItemBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	item, err := h.catalog.CreateItem(ctx, services.CreateItemCommand{
		Name:       req.Name,
		SKU:        req.SKU,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildItemPayload(item))
}

func (h *ItemHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	items, err := h.catalog.ListItems(ctx, services.ItemListFilter{
		SKU:        query.Get("sku"),
		CategoryID: query.Get("category_id"),
		Pagination: services.Pagination{Limit: params.Limit, Offset: params.Offset},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := itemListResponse{Items: make([]itemPayload, 0, len(items))}
	for _, item := range items {
		payload.Items = append(payload.Items, buildItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *ItemHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	item, err := h.catalog.GetItem(ctx, itemID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildItemPayload(item))
}

func (h *ItemHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	var req updateItemRequest
	if err := decodeJSONBody(r, maxItemBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	item, err := h.catalog.UpdateItem(ctx, itemID, services.UpdateItemCommand{
		Name:       req.Name,
		SKU:        req.SKU,
		PriceCents: req.PriceCents,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildItemPayload(item))
}

func (h *ItemHandlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteItem(ctx, itemID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildItemPayload(item domain.Item) itemPayload {
	return itemPayload{
		ID:         item.ID,
		Name:       item.Name,
		SKU:        item.SKU,
		PriceCents: item.PriceCents,
		Stock:      item.Stock,
		CategoryID: item.CategoryID,
		CreatedAt:  formatTime(item.CreatedAt),
		UpdatedAt:  formatTime(item.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogDuplicateSKU):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_sku", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCatalogDuplicateCategory):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_category", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("record_in_use", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
